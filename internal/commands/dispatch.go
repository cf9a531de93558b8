package commands

import (
	"github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
)

// Set groups the handlers exposed by the runtime.
type Set struct {
	CreateSnapshots  *Handler[CreateSnapshotsCommand]
	CleanupSnapshots *Handler[CleanupSnapshotsCommand]
	SyncRoutes       *Handler[SyncRoutesCommand]
	FlushCache       *Handler[FlushCacheCommand]
}

// Subscription detaches a handler from the dispatcher.
type Subscription interface {
	Unsubscribe()
}

// Subscribe registers every non-nil handler of the set with the go-command
// dispatcher so hosts can dispatch messages by value. Failed executions are
// retried up to retries times.
func Subscribe(set Set, retries int) []Subscription {
	if retries < 0 {
		retries = 0
	}
	subs := []Subscription{}
	if set.CreateSnapshots != nil {
		subs = append(subs, dispatcher.SubscribeCommand(set.CreateSnapshots, runner.WithMaxRetries(retries)))
	}
	if set.CleanupSnapshots != nil {
		subs = append(subs, dispatcher.SubscribeCommand(set.CleanupSnapshots, runner.WithMaxRetries(retries)))
	}
	if set.SyncRoutes != nil {
		subs = append(subs, dispatcher.SubscribeCommand(set.SyncRoutes, runner.WithMaxRetries(retries)))
	}
	if set.FlushCache != nil {
		subs = append(subs, dispatcher.SubscribeCommand(set.FlushCache, runner.WithMaxRetries(retries)))
	}
	return subs
}

// Unsubscribe detaches every subscription.
func Unsubscribe(subs []Subscription) {
	for _, sub := range subs {
		sub.Unsubscribe()
	}
}
