package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/frankbria/auto-author-sub001/internal/core/domain"
	"github.com/frankbria/auto-author-sub001/internal/core/port"
	"github.com/frankbria/auto-author-sub001/internal/repository"
)

const sessionCollection = "sessions"

// SessionRepository implements port.SessionStore on the document database.
// Every operation is a single-document atomic write; the concurrent-session
// budget tolerates the transient races that leaves.
type SessionRepository struct {
	db  *mongo.Database
	now func() time.Time
}

// NewSessionRepository constructs a SessionRepository.
func NewSessionRepository(db *mongo.Database) *SessionRepository {
	return &SessionRepository{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

type sessionMetadataDocument struct {
	IPAddress   string `bson:"ip_address"`
	UserAgent   string `bson:"user_agent"`
	DeviceType  string `bson:"device_type"`
	Browser     string `bson:"browser"`
	OS          string `bson:"os"`
	Fingerprint string `bson:"fingerprint"`
}

type sessionDocument struct {
	ID                string                  `bson:"_id"`
	CSRFToken         string                  `bson:"csrf_token"`
	UserID            string                  `bson:"user_id"`
	ExternalSessionID string                  `bson:"external_session_id,omitempty"`
	Metadata          sessionMetadataDocument `bson:"metadata"`
	CreatedAt         time.Time               `bson:"created_at"`
	LastActivity      time.Time               `bson:"last_activity"`
	ExpiresAt         time.Time               `bson:"expires_at"`
	State             string                  `bson:"state"`
	Suspicious        bool                    `bson:"suspicious"`
	SuspicionReasons  []string                `bson:"suspicion_reasons,omitempty"`
	RequestCount      int64                   `bson:"request_count"`
	LastPath          string                  `bson:"last_path,omitempty"`
	DeactivatedAt     *time.Time              `bson:"deactivated_at,omitempty"`
}

// EnsureIndexes creates the indexes session queries depend on.
func (r *SessionRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection().Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "state", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "expires_at", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create session indexes: %w", err)
	}
	return nil
}

// Insert persists a new session record.
func (r *SessionRepository) Insert(ctx context.Context, session domain.Session) error {
	if _, err := r.collection().InsertOne(ctx, toDocument(session)); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// Get fetches a session by identifier.
func (r *SessionRepository) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	var doc sessionDocument
	err := r.collection().FindOne(ctx, bson.M{"_id": sessionID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	session := fromDocument(doc)
	return &session, nil
}

// ListActive returns the user's active sessions ordered newest first.
func (r *SessionRepository) ListActive(ctx context.Context, userID string, limit int) ([]domain.Session, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	if limit > 0 {
		opts = opts.SetLimit(int64(limit))
	}

	cursor, err := r.collection().Find(ctx, r.activeFilter(userID), opts)
	if err != nil {
		return nil, fmt.Errorf("list active sessions: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []sessionDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode sessions: %w", err)
	}

	sessions := make([]domain.Session, 0, len(docs))
	for _, doc := range docs {
		sessions = append(sessions, fromDocument(doc))
	}
	return sessions, nil
}

// CountActive returns the number of active sessions for the user.
func (r *SessionRepository) CountActive(ctx context.Context, userID string) (int, error) {
	count, err := r.collection().CountDocuments(ctx, r.activeFilter(userID))
	if err != nil {
		return 0, fmt.Errorf("count active sessions: %w", err)
	}
	return int(count), nil
}

// UpdateActivity bumps last activity and the request counter in one write.
func (r *SessionRepository) UpdateActivity(ctx context.Context, sessionID string, at time.Time, path string) error {
	update := bson.M{
		"$set": bson.M{"last_activity": at.UTC(), "last_path": path},
		"$inc": bson.M{"request_count": 1},
	}
	result, err := r.collection().UpdateOne(ctx, bson.M{"_id": sessionID}, update)
	if err != nil {
		return fmt.Errorf("update session activity: %w", err)
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ExtendExpiry pushes the expiry of an active session forward. The state
// filter keeps a refresh from resurrecting a terminated session.
func (r *SessionRepository) ExtendExpiry(ctx context.Context, sessionID string, expiresAt, at time.Time) (bool, error) {
	result, err := r.collection().UpdateOne(ctx,
		bson.M{"_id": sessionID, "state": string(domain.SessionStateActive)},
		bson.M{"$set": bson.M{"expires_at": expiresAt.UTC(), "last_activity": at.UTC()}},
	)
	if err != nil {
		return false, fmt.Errorf("extend session expiry: %w", err)
	}
	return result.MatchedCount > 0, nil
}

// Deactivate moves an active session to a terminal state. The state filter
// makes the transition a compare-and-swap: an already-terminated session
// reports false instead of being overwritten.
func (r *SessionRepository) Deactivate(ctx context.Context, sessionID string, state domain.SessionState, at time.Time) (bool, error) {
	deactivatedAt := at.UTC()
	result, err := r.collection().UpdateOne(ctx,
		bson.M{"_id": sessionID, "state": string(domain.SessionStateActive)},
		bson.M{"$set": bson.M{"state": string(state), "deactivated_at": deactivatedAt}},
	)
	if err != nil {
		return false, fmt.Errorf("deactivate session: %w", err)
	}
	return result.ModifiedCount > 0, nil
}

// DeactivateAll terminates every active session for the user, optionally
// sparing one.
func (r *SessionRepository) DeactivateAll(ctx context.Context, userID, exceptSessionID string, state domain.SessionState, at time.Time) (int, error) {
	filter := bson.M{"user_id": userID, "state": string(domain.SessionStateActive)}
	if exceptSessionID != "" {
		filter["_id"] = bson.M{"$ne": exceptSessionID}
	}

	deactivatedAt := at.UTC()
	result, err := r.collection().UpdateMany(ctx, filter,
		bson.M{"$set": bson.M{"state": string(state), "deactivated_at": deactivatedAt}},
	)
	if err != nil {
		return 0, fmt.Errorf("deactivate sessions for user: %w", err)
	}
	return int(result.ModifiedCount), nil
}

// DeleteExpired hard-deletes sessions whose expiry predates the cutoff.
// This is storage hygiene only; lazy expiry already hides these records.
func (r *SessionRepository) DeleteExpired(ctx context.Context, cutoff time.Time) (int, error) {
	result, err := r.collection().DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lt": cutoff.UTC()}})
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return int(result.DeletedCount), nil
}

// FlagSuspicious records an advisory suspicion reason without touching any
// other session state.
func (r *SessionRepository) FlagSuspicious(ctx context.Context, sessionID, reason string) error {
	update := bson.M{
		"$set":      bson.M{"suspicious": true},
		"$addToSet": bson.M{"suspicion_reasons": reason},
	}
	result, err := r.collection().UpdateOne(ctx, bson.M{"_id": sessionID}, update)
	if err != nil {
		return fmt.Errorf("flag session suspicious: %w", err)
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *SessionRepository) collection() *mongo.Collection {
	return r.db.Collection(sessionCollection)
}

// activeFilter matches sessions that are active under lazy expiry: the state
// is Active and the expiry has not yet passed, regardless of whether a
// deactivation write has happened.
func (r *SessionRepository) activeFilter(userID string) bson.M {
	return bson.M{
		"user_id":    userID,
		"state":      string(domain.SessionStateActive),
		"expires_at": bson.M{"$gt": r.now()},
	}
}

func toDocument(s domain.Session) sessionDocument {
	return sessionDocument{
		ID:                s.ID,
		CSRFToken:         s.CSRFToken,
		UserID:            s.UserID,
		ExternalSessionID: s.ExternalSessionID,
		Metadata: sessionMetadataDocument{
			IPAddress:   s.Metadata.IPAddress,
			UserAgent:   s.Metadata.UserAgent,
			DeviceType:  string(s.Metadata.DeviceType),
			Browser:     s.Metadata.Browser,
			OS:          s.Metadata.OS,
			Fingerprint: s.Metadata.Fingerprint,
		},
		CreatedAt:        s.CreatedAt.UTC(),
		LastActivity:     s.LastActivity.UTC(),
		ExpiresAt:        s.ExpiresAt.UTC(),
		State:            string(s.State),
		Suspicious:       s.Suspicious,
		SuspicionReasons: s.SuspicionReasons,
		RequestCount:     s.RequestCount,
	}
}

func fromDocument(doc sessionDocument) domain.Session {
	return domain.Session{
		ID:                doc.ID,
		CSRFToken:         doc.CSRFToken,
		UserID:            doc.UserID,
		ExternalSessionID: doc.ExternalSessionID,
		Metadata: domain.SessionMetadata{
			IPAddress:   doc.Metadata.IPAddress,
			UserAgent:   doc.Metadata.UserAgent,
			DeviceType:  domain.DeviceType(doc.Metadata.DeviceType),
			Browser:     doc.Metadata.Browser,
			OS:          doc.Metadata.OS,
			Fingerprint: doc.Metadata.Fingerprint,
		},
		CreatedAt:        doc.CreatedAt,
		LastActivity:     doc.LastActivity,
		ExpiresAt:        doc.ExpiresAt,
		State:            domain.SessionState(doc.State),
		Suspicious:       doc.Suspicious,
		SuspicionReasons: doc.SuspicionReasons,
		RequestCount:     doc.RequestCount,
	}
}

var _ port.SessionStore = (*SessionRepository)(nil)
