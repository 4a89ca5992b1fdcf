package ports

import (
	"context"

	"github.com/vncsmyrnk/mcvotes/internal/core/domain"
)

// VoteNotifier delivers "vote received" events to realtime subscribers.
// Delivery is best effort.
type VoteNotifier interface {
	PublishVoteReceived(ctx context.Context, event domain.VoteReceivedEvent) error
}

// WebhookNotifier formats and queues an outbound webhook message. It must not
// block the caller.
type WebhookNotifier interface {
	NotifyVoteReceived(webhookURL string, event domain.VoteReceivedEvent)
}

type VoteMetrics interface {
	IncVotesRecorded()
	IncVoteRejected(reason string)
	AddRewardsEarned(n int)
	AddRewardsClaimed(n int)
	AddServersMarkedOffline(n int64)
	ObserveVoteRecordDuration(seconds float64)
}
