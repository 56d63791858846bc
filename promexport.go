package simplertos

import "github.com/prometheus/client_golang/prometheus"

// Collector adapts a Kernel's Metrics snapshot to a prometheus.Collector,
// for embedders that already run a client_golang registry. It's an
// out-of-pack addition to the domain stack: none of the reference
// sources expose metrics this way, but it's the idiomatic way a Go
// service surfaces kernel-level counters for scraping.
type Collector struct {
	k *Kernel

	ticks           *prometheus.Desc
	contextSwitches *prometheus.Desc
	tasksCreated    *prometheus.Desc
	tasksDeleted    *prometheus.Desc
	timersFired     *prometheus.Desc
	queueSends      *prometheus.Desc
	queueReceives   *prometheus.Desc
	mutexInversions *prometheus.Desc
	notifications   *prometheus.Desc
}

// NewCollector returns a prometheus.Collector exposing k's counters under
// the simplertos_ namespace.
func NewCollector(k *Kernel) *Collector {
	ns := "simplertos"
	return &Collector{
		k:               k,
		ticks:           prometheus.NewDesc(ns+"_ticks_total", "Total number of Tick calls observed.", nil, nil),
		contextSwitches: prometheus.NewDesc(ns+"_context_switches_total", "Total number of task dispatch switches.", nil, nil),
		tasksCreated:    prometheus.NewDesc(ns+"_tasks_created_total", "Total number of tasks created.", nil, nil),
		tasksDeleted:    prometheus.NewDesc(ns+"_tasks_deleted_total", "Total number of tasks deleted.", nil, nil),
		timersFired:     prometheus.NewDesc(ns+"_timers_fired_total", "Total number of software timer callbacks invoked.", nil, nil),
		queueSends:      prometheus.NewDesc(ns+"_queue_sends_total", "Total number of successful queue sends.", nil, nil),
		queueReceives:   prometheus.NewDesc(ns+"_queue_receives_total", "Total number of successful queue receives.", nil, nil),
		mutexInversions: prometheus.NewDesc(ns+"_mutex_inversions_total", "Total number of priority-inheritance boosts applied.", nil, nil),
		notifications:   prometheus.NewDesc(ns+"_notifications_total", "Total number of task notifications consumed.", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.ticks
	ch <- c.contextSwitches
	ch <- c.tasksCreated
	ch <- c.tasksDeleted
	ch <- c.timersFired
	ch <- c.queueSends
	ch <- c.queueReceives
	ch <- c.mutexInversions
	ch <- c.notifications
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.k.Metrics()
	ch <- prometheus.MustNewConstMetric(c.ticks, prometheus.CounterValue, float64(s.Ticks))
	ch <- prometheus.MustNewConstMetric(c.contextSwitches, prometheus.CounterValue, float64(s.ContextSwitches))
	ch <- prometheus.MustNewConstMetric(c.tasksCreated, prometheus.CounterValue, float64(s.TasksCreated))
	ch <- prometheus.MustNewConstMetric(c.tasksDeleted, prometheus.CounterValue, float64(s.TasksDeleted))
	ch <- prometheus.MustNewConstMetric(c.timersFired, prometheus.CounterValue, float64(s.TimersFired))
	ch <- prometheus.MustNewConstMetric(c.queueSends, prometheus.CounterValue, float64(s.QueueSends))
	ch <- prometheus.MustNewConstMetric(c.queueReceives, prometheus.CounterValue, float64(s.QueueReceives))
	ch <- prometheus.MustNewConstMetric(c.mutexInversions, prometheus.CounterValue, float64(s.MutexInversions))
	ch <- prometheus.MustNewConstMetric(c.notifications, prometheus.CounterValue, float64(s.Notifications))
}
