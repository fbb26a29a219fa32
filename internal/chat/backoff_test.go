package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRetrySchedule(t *testing.T) {
	tests := []struct {
		maxAttempts int
		want        []time.Duration
	}{
		{1, nil},
		{3, []time.Duration{time.Second, 2 * time.Second}},
		{5, []time.Duration{time.Second, 2 * time.Second, 3 * time.Second, 4 * time.Second}},
	}
	for _, tt := range tests {
		s := retrySchedule(time.Second, tt.maxAttempts)
		var got []time.Duration
		for d := s.NextBackOff(); d != backoff.Stop; d = s.NextBackOff() {
			got = append(got, d)
		}
		assert.Equal(t, tt.want, got, "maxAttempts=%d", tt.maxAttempts)
	}
}

func TestRespondCountsOutcomes(t *testing.T) {
	failedBefore := testutil.ToFloat64(attemptsTotal.WithLabelValues(outcomeFailed))
	ideasBefore := testutil.ToFloat64(attemptsTotal.WithLabelValues(outcomeIdeas))
	succeededBefore := testutil.ToFloat64(requestsTotal.WithLabelValues(string(StateSucceeded)))

	model := &fakeModel{replies: []modelReply{{err: errors.New("503")}, {text: threeIdeas()}}}
	o, _ := newTestOrchestrator(model, &fakeCalendar{}, fakeStore{})
	o.Respond(context.Background(), Request{Message: "ideas"})

	assert.Equal(t, failedBefore+1, testutil.ToFloat64(attemptsTotal.WithLabelValues(outcomeFailed)))
	assert.Equal(t, ideasBefore+1, testutil.ToFloat64(attemptsTotal.WithLabelValues(outcomeIdeas)))
	assert.Equal(t, succeededBefore+1, testutil.ToFloat64(requestsTotal.WithLabelValues(string(StateSucceeded))))
}
