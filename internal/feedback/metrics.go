package feedback

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var votesRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "cryptodaily_votes_recorded_total",
	Help: "Feedback votes appended per section and value",
}, []string{"section", "vote"})

var currentVoteLookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "cryptodaily_current_vote_lookups_total",
	Help: "Current vote reads by cache result",
}, []string{"result"})
