package qa

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"quorum/api/internal/util"
)

func feedItems() []Item {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return []Item{
		{ID: "q2", Title: "newer", CreatedAt: now.Add(time.Hour), UpvotedBy: []string{}, DownvotedBy: []string{}},
		{ID: "q1", Title: "older", CreatedAt: now, UpvotedBy: []string{"bob"}, DownvotedBy: []string{"carol"}},
	}
}

func TestFetchReplacesFeed(t *testing.T) {
	remote := &fakeRemote{
		listFn: func(ctx context.Context, collection string, q ListQuery) ([]Item, error) {
			if collection != QuestionsCollection {
				t.Errorf("expected questions collection, got %s", collection)
			}
			if !q.Descending || q.Limit != 10 {
				t.Errorf("feed query should be newest-first limited, got %+v", q)
			}
			return feedItems(), nil
		},
	}
	store := NewQuestionStore(signedOutSession(), remote, 10)

	if err := store.Fetch(context.Background()); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	all := store.All()
	if len(all) != 2 || all[0].ID != "q2" {
		t.Errorf("expected feed [q2 q1], got %v", all)
	}
	if store.IsLoading() {
		t.Error("loading flag must be cleared after fetch")
	}
}

func TestFetchFailureLeavesEmptyFeedAndRecordsError(t *testing.T) {
	remote := &fakeRemote{
		listFn: func(context.Context, string, ListQuery) ([]Item, error) {
			return nil, errors.New("connection refused")
		},
	}
	store := NewQuestionStore(signedOutSession(), remote, 10)

	if err := store.Fetch(context.Background()); err == nil {
		t.Fatal("expected fetch error")
	}
	if got := store.All(); len(got) != 0 {
		t.Errorf("expected empty feed after failed fetch, got %v", got)
	}
	if store.Err() == "" {
		t.Error("expected an error message on the store")
	}
	if store.IsLoading() {
		t.Error("loading flag must be cleared on the failure path too")
	}
}

func TestStaleFetchResultIsDiscarded(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	remote := &fakeRemote{
		listFn: func(context.Context, string, ListQuery) ([]Item, error) {
			close(started)
			<-release
			return feedItems(), nil
		},
	}
	store := NewQuestionStore(signedOutSession(), remote, 10)

	done := make(chan error, 1)
	go func() { done <- store.Fetch(context.Background()) }()
	<-started

	// Navigating away supersedes the in-flight fetch.
	store.Clear()
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("stale fetch should resolve silently, got %v", err)
	}

	if got := store.All(); len(got) != 0 {
		t.Errorf("stale result applied to a cleared feed: %v", got)
	}
}

func TestPostOptimisticInsertAndConfirm(t *testing.T) {
	var provisional Item
	remote := &fakeRemote{
		createFn: func(ctx context.Context, collection string, item Item) (string, error) {
			provisional = item
			return "assigned-id", nil
		},
	}
	store := NewQuestionStore(signedInSession("alice", "Alice"), remote, 10)

	if err := store.Post(context.Background(), "How?", "Details"); err != nil {
		t.Fatalf("Post failed: %v", err)
	}

	if !util.IsTempID(provisional.ID) {
		t.Errorf("remote should have seen the provisional item, got id %q", provisional.ID)
	}
	if !provisional.IsOptimistic {
		t.Error("provisional item should be marked optimistic")
	}

	all := store.All()
	if len(all) != 1 {
		t.Fatalf("expected one question, got %d", len(all))
	}
	if all[0].ID != "assigned-id" {
		t.Errorf("expected server-assigned id, got %q", all[0].ID)
	}
	if all[0].IsOptimistic {
		t.Error("confirmed item must not stay optimistic")
	}
	if all[0].VoteCount != 0 || len(all[0].UpvotedBy) != 0 || len(all[0].DownvotedBy) != 0 {
		t.Errorf("new item must start with zero votes, got %+v", all[0])
	}
}

func TestPostInsertsAtFront(t *testing.T) {
	remote := &fakeRemote{
		listFn: func(context.Context, string, ListQuery) ([]Item, error) {
			return feedItems(), nil
		},
	}
	store := NewQuestionStore(signedInSession("alice", "Alice"), remote, 10)
	if err := store.Fetch(context.Background()); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	if err := store.Post(context.Background(), "newest", "body"); err != nil {
		t.Fatalf("Post failed: %v", err)
	}
	all := store.All()
	if len(all) != 3 || all[0].Title != "newest" {
		t.Errorf("new question must lead the feed, got %v", all)
	}
}

func TestPostRollbackOnRemoteFailure(t *testing.T) {
	remote := &fakeRemote{
		listFn: func(context.Context, string, ListQuery) ([]Item, error) {
			return feedItems(), nil
		},
		createFn: func(context.Context, string, Item) (string, error) {
			return "", errors.New("write rejected")
		},
	}
	store := NewQuestionStore(signedInSession("alice", "Alice"), remote, 10)
	if err := store.Fetch(context.Background()); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	before := store.All()

	if err := store.Post(context.Background(), "doomed", "body"); err == nil {
		t.Fatal("expected post error")
	}

	after := store.All()
	if !reflect.DeepEqual(before, after) {
		t.Errorf("failed post must leave exactly the prior items:\nbefore %v\nafter  %v", before, after)
	}
	if store.Err() == "" {
		t.Error("expected an error message on the store")
	}
}

func TestPostRequiresIdentityAndSkipsRemote(t *testing.T) {
	remote := &fakeRemote{}
	store := NewQuestionStore(signedOutSession(), remote, 10)

	err := store.Post(context.Background(), "title", "body")
	if !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
	if remote.createCalls != 0 {
		t.Errorf("unauthenticated post must not reach the remote, saw %d calls", remote.createCalls)
	}
	if len(store.All()) != 0 {
		t.Error("unauthenticated post must not mutate the feed")
	}
}

func TestVoteOptimisticThenConfirmed(t *testing.T) {
	var sent struct {
		itemID, userID string
		voteType       Vote
	}
	remote := &fakeRemote{
		listFn: func(context.Context, string, ListQuery) ([]Item, error) {
			return feedItems(), nil
		},
		voteFn: func(ctx context.Context, collection, itemID, userID string, voteType Vote) error {
			sent.itemID, sent.userID, sent.voteType = itemID, userID, voteType
			return nil
		},
	}
	store := NewQuestionStore(signedInSession("alice", "Alice"), remote, 10)
	if err := store.Fetch(context.Background()); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	if err := store.Vote(context.Background(), "q1", VoteUp); err != nil {
		t.Fatalf("Vote failed: %v", err)
	}

	// Only the desired vote type travels; the remote recomputes the
	// current vote from its own document.
	if sent.itemID != "q1" || sent.userID != "alice" || sent.voteType != VoteUp {
		t.Errorf("unexpected remote vote request: %+v", sent)
	}

	question, ok := store.Get("q1")
	if !ok {
		t.Fatal("question q1 missing")
	}
	if VoteOf(question.UpvotedBy, question.DownvotedBy, "alice") != VoteUp {
		t.Errorf("expected alice upvoting, got up=%v down=%v", question.UpvotedBy, question.DownvotedBy)
	}
	if question.VoteCount != len(question.UpvotedBy)-len(question.DownvotedBy) {
		t.Error("voteCount out of sync with sets")
	}
}

func TestVoteRollbackRestoresExactSnapshot(t *testing.T) {
	remote := &fakeRemote{
		listFn: func(context.Context, string, ListQuery) ([]Item, error) {
			return feedItems(), nil
		},
		voteFn: func(context.Context, string, string, string, Vote) error {
			return errors.New("transaction failed")
		},
	}
	store := NewQuestionStore(signedInSession("alice", "Alice"), remote, 10)
	if err := store.Fetch(context.Background()); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	before, _ := store.Get("q1")

	if err := store.Vote(context.Background(), "q1", VoteDown); err == nil {
		t.Fatal("expected vote error")
	}

	after, _ := store.Get("q1")
	if !reflect.DeepEqual(before.UpvotedBy, after.UpvotedBy) ||
		!reflect.DeepEqual(before.DownvotedBy, after.DownvotedBy) ||
		before.VoteCount != after.VoteCount {
		t.Errorf("rollback must restore the snapshot:\nbefore %+v\nafter  %+v", before, after)
	}
	if store.Err() == "" {
		t.Error("expected an error message on the store")
	}
}

func TestVoteRequiresIdentityAndSkipsRemote(t *testing.T) {
	remote := &fakeRemote{
		listFn: func(context.Context, string, ListQuery) ([]Item, error) {
			return feedItems(), nil
		},
	}
	store := NewQuestionStore(signedOutSession(), remote, 10)
	if err := store.Fetch(context.Background()); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	err := store.Vote(context.Background(), "q1", VoteUp)
	if !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
	if remote.voteCalls != 0 {
		t.Errorf("unauthenticated vote must not reach the remote, saw %d calls", remote.voteCalls)
	}
}

func TestVoteUnknownItem(t *testing.T) {
	remote := &fakeRemote{}
	store := NewQuestionStore(signedInSession("alice", "Alice"), remote, 10)

	err := store.Vote(context.Background(), "missing", VoteUp)
	if !errors.Is(err, ErrItemNotFound) {
		t.Fatalf("expected ErrItemNotFound, got %v", err)
	}
	if remote.voteCalls != 0 {
		t.Errorf("vote on unknown item must not reach the remote, saw %d calls", remote.voteCalls)
	}
}

func TestUserVoteLookup(t *testing.T) {
	remote := &fakeRemote{
		listFn: func(context.Context, string, ListQuery) ([]Item, error) {
			return feedItems(), nil
		},
	}
	store := NewQuestionStore(signedInSession("bob", "Bob"), remote, 10)
	if err := store.Fetch(context.Background()); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	if got := store.UserVote("q1"); got != VoteUp {
		t.Errorf("expected bob's upvote on q1, got %s", got)
	}
	if got := store.UserVote("q2"); got != VoteNone {
		t.Errorf("expected no vote on q2, got %s", got)
	}
	if got := store.UserVote("missing"); got != VoteNone {
		t.Errorf("expected none for unknown item, got %s", got)
	}
}

func TestLoadPrefersLocalQuestion(t *testing.T) {
	remote := &fakeRemote{
		listFn: func(context.Context, string, ListQuery) ([]Item, error) {
			return feedItems(), nil
		},
	}
	store := NewQuestionStore(signedOutSession(), remote, 10)
	if err := store.Fetch(context.Background()); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	item, err := store.Load(context.Background(), "q1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if item.Title != "older" {
		t.Errorf("expected local q1, got %+v", item)
	}
	if remote.getCalls != 0 {
		t.Errorf("local hit must not call remote, got %d get calls", remote.getCalls)
	}
}

func TestLoadFetchesQuestionOutsideFeed(t *testing.T) {
	remote := &fakeRemote{
		listFn: func(context.Context, string, ListQuery) ([]Item, error) {
			return feedItems(), nil
		},
		getFn: func(ctx context.Context, collection, id string) (Item, error) {
			if collection != QuestionsCollection || id != "q99" {
				t.Errorf("unexpected get %s/%s", collection, id)
			}
			return Item{ID: "q99", Title: "archived", UpvotedBy: []string{}, DownvotedBy: []string{}}, nil
		},
	}
	store := NewQuestionStore(signedInSession("alice", "alice"), remote, 10)
	if err := store.Fetch(context.Background()); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	item, err := store.Load(context.Background(), "q99")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if item.Title != "archived" {
		t.Errorf("expected remote question, got %+v", item)
	}

	// The loaded question joins the collection, so a vote can find it.
	if err := store.Vote(context.Background(), "q99", VoteUp); err != nil {
		t.Fatalf("Vote on loaded question failed: %v", err)
	}
	if got, _ := store.Get("q99"); got.VoteCount != 1 {
		t.Errorf("expected voteCount 1 on loaded question, got %d", got.VoteCount)
	}
}

func TestLoadMissingQuestion(t *testing.T) {
	store := NewQuestionStore(signedOutSession(), &fakeRemote{}, 10)

	if _, err := store.Load(context.Background(), "q_gone"); !errors.Is(err, ErrItemNotFound) {
		t.Fatalf("expected ErrItemNotFound, got %v", err)
	}
	if store.Err() != "question not found" {
		t.Errorf("expected not-found error message, got %q", store.Err())
	}
}
