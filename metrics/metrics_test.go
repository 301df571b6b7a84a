package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestStatus(t *testing.T) {
	assert.Equal(t, StatusOK, Status(nil))
	assert.Equal(t, StatusError, Status(errors.New("boom")))
}

func TestCountersIncrement(t *testing.T) {
	before := testutil.ToFloat64(Questions.WithLabelValues(StatusOK))
	Questions.WithLabelValues(StatusOK).Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(Questions.WithLabelValues(StatusOK)))
}

func TestObserveStage(t *testing.T) {
	ObserveStage("test", time.Now().Add(-time.Second))
	assert.Equal(t, 1, testutil.CollectAndCount(StageDuration))
}
