package client

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/yusufkarademir/etkinlikqr/internal/comment"
	"github.com/yusufkarademir/etkinlikqr/internal/feed"
)

// CommentSession shows a guest's comments in their own feed before the server
// acknowledges them.
type CommentSession struct {
	client  *Client
	tracker *feed.Tracker
	now     func() time.Time
}

// NewCommentSession creates a session for c's guest.
func NewCommentSession(c *Client) *CommentSession {
	return &CommentSession{client: c, tracker: feed.NewTracker(), now: time.Now}
}

// Submit adds an optimistic comment, posts it and confirms or rolls it back from
// the response. It returns the local ID of the optimistic item. A comment the server
// holds for moderation is rolled back since guests do not see pending comments.
func (s *CommentSession) Submit(ctx context.Context, photoID, content, authorName string) (string, *comment.Comment, error) {
	localID := "local-" + uuid.NewString()
	optimistic := feed.NewCommentItem(&comment.Comment{
		PhotoID:    photoID,
		Content:    content,
		AuthorName: authorName,
		Status:     comment.StatusApproved,
		CreatedAt:  s.now().UTC(),
	})
	if err := s.tracker.AddPending(localID, optimistic); err != nil {
		return "", nil, err
	}

	created, err := s.client.SubmitComment(ctx, photoID, content, authorName)
	if err != nil {
		_ = s.tracker.RollBack(localID)
		return localID, nil, err
	}
	if created.Status != comment.StatusApproved {
		_ = s.tracker.RollBack(localID)
		return localID, created, nil
	}
	if err := s.tracker.Confirm(localID, feed.NewCommentItem(created)); err != nil {
		return localID, created, err
	}
	return localID, created, nil
}

// State reports the optimistic state of a submission.
func (s *CommentSession) State(localID string) (feed.OptimisticState, bool) {
	return s.tracker.State(localID)
}

// View overlays the session's comments on a server feed.
func (s *CommentSession) View(base []feed.Item) []feed.Item {
	return s.tracker.View(base)
}
