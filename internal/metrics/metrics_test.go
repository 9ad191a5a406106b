package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRedemptionsByResult(t *testing.T) {
	before := testutil.ToFloat64(Redemptions.WithLabelValues(ResultSuccess))
	Redemptions.WithLabelValues(ResultSuccess).Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(Redemptions.WithLabelValues(ResultSuccess)))
}

func TestIssuedCounter(t *testing.T) {
	before := testutil.ToFloat64(MagicLinksIssued)
	MagicLinksIssued.Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(MagicLinksIssued))
}
