package handlers

import (
	"context"
	"log"

	"github.com/driftlog-app/driftlog/backend/internal/models"
	"github.com/driftlog-app/driftlog/backend/internal/repositories"
)

// Notifier writes notification rows for social events. Delivery is off the
// request path: every method returns immediately and the write happens in a
// goroutine, with failures logged and dropped. Self-actions never notify.
type Notifier struct {
	notificationRepository repositories.NotificationRepository
	userRepository         repositories.UserRepository
	postRepository         repositories.PostRepository
	activityRepository     repositories.ActivityRepository
}

// NewNotifier creates a new Notifier
func NewNotifier(notifRepo repositories.NotificationRepository, userRepo repositories.UserRepository, postRepo repositories.PostRepository, activityRepo repositories.ActivityRepository) *Notifier {
	return &Notifier{
		notificationRepository: notifRepo,
		userRepository:         userRepo,
		postRepository:         postRepo,
		activityRepository:     activityRepo,
	}
}

// targetAuthor resolves who owns the post or activity being acted on.
func (n *Notifier) targetAuthor(ctx context.Context, target models.TargetRef) (string, error) {
	switch target.Type {
	case models.TargetTypePost:
		post, err := n.postRepository.GetPostByID(ctx, target.ID)
		if err != nil {
			return "", err
		}
		return post.AuthorID, nil
	case models.TargetTypeActivity:
		activity, err := n.activityRepository.GetActivityByID(ctx, target.ID)
		if err != nil {
			return "", err
		}
		return activity.AuthorID, nil
	}
	return "", nil
}

func (n *Notifier) deliver(notificationType, actorID, recipientID, message string, target models.TargetRef) {
	if n == nil || recipientID == "" || recipientID == actorID {
		return
	}
	notification := &models.Notification{
		Type:        notificationType,
		ActorID:     actorID,
		RecipientID: recipientID,
		TargetType:  string(target.Type),
		TargetID:    target.ID,
		Message:     message,
	}
	if err := n.notificationRepository.CreateNotification(context.Background(), notification); err != nil {
		log.Println("Notification write failed:", err)
	}
}

// Liked notifies the target's author about a new like.
func (n *Notifier) Liked(actorID string, target models.TargetRef) {
	if n == nil {
		return
	}
	go func() {
		ctx := context.Background()
		recipientID, err := n.targetAuthor(ctx, target)
		if err != nil {
			return
		}
		actor, err := n.userRepository.GetUserByID(ctx, actorID)
		if err != nil {
			return
		}
		n.deliver("like", actorID, recipientID, actor.Name+" liked your "+string(target.Type), target)
	}()
}

// Commented notifies the target's author about a new comment.
func (n *Notifier) Commented(actorID string, target models.TargetRef) {
	if n == nil {
		return
	}
	go func() {
		ctx := context.Background()
		recipientID, err := n.targetAuthor(ctx, target)
		if err != nil {
			return
		}
		actor, err := n.userRepository.GetUserByID(ctx, actorID)
		if err != nil {
			return
		}
		n.deliver("comment", actorID, recipientID, actor.Name+" commented on your "+string(target.Type), target)
	}()
}

// Followed notifies a user about a new follower.
func (n *Notifier) Followed(actorID, followeeID string) {
	if n == nil {
		return
	}
	go func() {
		actor, err := n.userRepository.GetUserByID(context.Background(), actorID)
		if err != nil {
			return
		}
		n.deliver("follow", actorID, followeeID, actor.Name+" started following you", models.UserTarget(followeeID))
	}()
}
