package bolt

import (
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	bolt "go.etcd.io/bbolt"
)

var _ prometheus.Collector = (*KVStore)(nil)

var (
	kvWritesDesc = prometheus.NewDesc(
		"boltdb_writes_total",
		"Total number of boltdb writes",
		nil, nil)

	kvReadsDesc = prometheus.NewDesc(
		"boltdb_reads_total",
		"Total number of boltdb reads",
		nil, nil)

	kvBucketKeysDesc = prometheus.NewDesc(
		"boltdb_bucket_keys",
		"Number of keys in a tracked boltdb bucket",
		[]string{"bucket"}, nil)
)

// TrackBucket adds the named bucket to those whose key count is exported.
func (s *KVStore) TrackBucket(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracked[name] = struct{}{}
}

func (s *KVStore) trackedBuckets() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.tracked))
	for name := range s.tracked {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Describe returns all descriptions of the collector.
func (s *KVStore) Describe(ch chan<- *prometheus.Desc) {
	ch <- kvWritesDesc
	ch <- kvReadsDesc
	ch <- kvBucketKeysDesc
}

// Collect returns the current state of all metrics of the collector.
func (s *KVStore) Collect(ch chan<- prometheus.Metric) {
	stats := s.db.Stats()
	writes := stats.TxStats.Write
	reads := stats.TxN

	ch <- prometheus.MustNewConstMetric(
		kvReadsDesc,
		prometheus.CounterValue,
		float64(reads),
	)

	ch <- prometheus.MustNewConstMetric(
		kvWritesDesc,
		prometheus.CounterValue,
		float64(writes),
	)

	names := s.trackedBuckets()
	if len(names) == 0 {
		return
	}
	_ = s.db.View(func(tx *bolt.Tx) error {
		for _, name := range names {
			keyNum := 0
			if b := tx.Bucket([]byte(name)); b != nil {
				keyNum = b.Stats().KeyN
			}

			ch <- prometheus.MustNewConstMetric(
				kvBucketKeysDesc,
				prometheus.GaugeValue,
				float64(keyNum),
				name,
			)
		}
		return nil
	})
}
