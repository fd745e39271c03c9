package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// InvitationsCreated counts invitation create outcomes
	// (created|idempotent|already_member|rejected).
	InvitationsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accesshub_invitations_created_total",
			Help: "Total number of invitation create calls by outcome",
		},
		[]string{"outcome"},
	)

	// InvitationTransitions counts terminal transitions by kind and result
	// (accepted|declined|revoked x success|lost_race|not_pending).
	InvitationTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accesshub_invitation_transitions_total",
			Help: "Total number of invitation transition attempts",
		},
		[]string{"transition", "result"},
	)

	// AccessGrants counts membership grants (created|already_granted).
	AccessGrants = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accesshub_access_grants_total",
			Help: "Total number of account access grants",
		},
		[]string{"outcome"},
	)

	// InvitationsRetired tracks expired invitations retired by maintenance.
	InvitationsRetired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "accesshub_invitations_retired_total",
			Help: "Total number of expired invitations retired",
		},
	)
)
