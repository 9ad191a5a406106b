// Package mongostore implements store.Store on MongoDB. Redemption runs in a
// multi-document transaction, so the server must be a replica set.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/go-magiclink/internal/database/models"
	"github.com/hugh/go-magiclink/internal/store"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	usersCollection      = "users"
	magicLinksCollection = "magic_links"
)

type Store struct {
	client *mongo.Client
	users  *mongo.Collection
	links  *mongo.Collection
}

var _ store.Store = (*Store)(nil)

// Connect dials uri and verifies the primary is reachable.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongodb: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("pinging mongodb: %w", err)
	}
	return New(client, database), nil
}

func New(client *mongo.Client, database string) *Store {
	db := client.Database(database)
	return &Store{
		client: client,
		users:  db.Collection(usersCollection),
		links:  db.Collection(magicLinksCollection),
	}
}

// EnsureIndexes creates the unique and lookup indexes. It is idempotent.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	if _, err := s.users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true).SetName("idx_users_email")},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}, Options: options.Index().SetName("idx_users_created_at")},
	}); err != nil {
		return fmt.Errorf("creating user indexes: %w", err)
	}

	if _, err := s.links.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "token", Value: 1}}, Options: options.Index().SetUnique(true).SetName("idx_magic_links_token")},
		{Keys: bson.D{{Key: "userId", Value: 1}}, Options: options.Index().SetName("idx_magic_links_user_id")},
		{Keys: bson.D{{Key: "expiresAt", Value: 1}}, Options: options.Index().SetName("idx_magic_links_expires_at")},
	}); err != nil {
		return fmt.Errorf("creating magic link indexes: %w", err)
	}
	return nil
}

type userDocument struct {
	ID              string     `bson:"_id"`
	Email           string     `bson:"email"`
	Name            string     `bson:"name"`
	IsEmailVerified bool       `bson:"isEmailVerified"`
	LastLogin       *time.Time `bson:"lastLogin,omitempty"`
	CreatedAt       time.Time  `bson:"createdAt"`
	UpdatedAt       time.Time  `bson:"updatedAt"`
}

func (d *userDocument) model() (*models.User, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("decoding user id %q: %w", d.ID, err)
	}
	u := &models.User{
		Email:           d.Email,
		Name:            d.Name,
		IsEmailVerified: d.IsEmailVerified,
		LastLogin:       d.LastLogin,
	}
	u.ID = id
	u.CreatedAt = d.CreatedAt
	u.UpdatedAt = d.UpdatedAt
	return u, nil
}

type magicLinkDocument struct {
	ID        string     `bson:"_id"`
	UserID    string     `bson:"userId"`
	Token     string     `bson:"token"`
	ExpiresAt time.Time  `bson:"expiresAt"`
	Used      bool       `bson:"used"`
	UsedAt    *time.Time `bson:"usedAt,omitempty"`
	CreatedAt time.Time  `bson:"createdAt"`
}

// now is truncated to the precision BSON dates can hold.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

func (s *Store) CreateUser(ctx context.Context, email, name string) (*models.User, error) {
	ts := now()
	doc := userDocument{
		ID:        uuid.New().String(),
		Email:     models.NormalizeEmail(email),
		Name:      name,
		CreatedAt: ts,
		UpdatedAt: ts,
	}
	if _, err := s.users.InsertOne(ctx, doc); err != nil {
		return nil, translate(err)
	}
	return doc.model()
}

func (s *Store) FindUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.findUser(ctx, bson.M{"_id": id.String()})
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findUser(ctx, bson.M{"email": models.NormalizeEmail(email)})
}

func (s *Store) findUser(ctx context.Context, filter bson.M) (*models.User, error) {
	var doc userDocument
	if err := s.users.FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, translate(err)
	}
	return doc.model()
}

func (s *Store) UpdateUser(ctx context.Context, id uuid.UUID, update store.UserUpdate) (*models.User, error) {
	set := bson.M{"updatedAt": now()}
	if update.Name != nil {
		set["name"] = *update.Name
	}
	if update.Email != nil {
		set["email"] = models.NormalizeEmail(*update.Email)
	}
	if update.IsEmailVerified != nil {
		set["isEmailVerified"] = *update.IsEmailVerified
	}
	if update.LastLogin != nil {
		set["lastLogin"] = update.LastLogin.UTC()
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc userDocument
	if err := s.users.FindOneAndUpdate(ctx, bson.M{"_id": id.String()}, bson.M{"$set": set}, opts).Decode(&doc); err != nil {
		return nil, translate(err)
	}
	return doc.model()
}

func (s *Store) ListUsers(ctx context.Context, limit int) ([]models.User, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}).SetLimit(int64(limit))
	cur, err := s.users.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}

	var docs []userDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decoding users: %w", err)
	}

	users := make([]models.User, 0, len(docs))
	for i := range docs {
		u, err := docs[i].model()
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, nil
}

func (s *Store) CreateMagicLink(ctx context.Context, link *models.MagicLink) error {
	if link.ID == uuid.Nil {
		link.ID = uuid.New()
	}
	if link.CreatedAt.IsZero() {
		link.CreatedAt = now()
	}

	doc := magicLinkDocument{
		ID:        link.ID.String(),
		UserID:    link.UserID.String(),
		Token:     link.Token,
		ExpiresAt: link.ExpiresAt.UTC(),
		Used:      link.Used,
		UsedAt:    link.UsedAt,
		CreatedAt: link.CreatedAt.UTC(),
	}
	if _, err := s.links.InsertOne(ctx, doc); err != nil {
		return translate(err)
	}
	return nil
}

func (s *Store) RedeemMagicLink(ctx context.Context, token string, at time.Time) (*models.User, error) {
	at = at.UTC()

	session, err := s.client.StartSession()
	if err != nil {
		return nil, fmt.Errorf("starting session: %w", err)
	}
	defer session.EndSession(ctx)

	result, err := session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		// A write conflict aborts the losing transaction; on retry the filter
		// no longer matches the consumed link.
		filter := bson.M{
			"token":     token,
			"used":      false,
			"expiresAt": bson.M{"$gt": at},
		}
		var link magicLinkDocument
		err := s.links.FindOneAndUpdate(sc, filter, bson.M{
			"$set": bson.M{"used": true, "usedAt": at},
		}).Decode(&link)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, store.ErrTokenUnavailable
		}
		if err != nil {
			return nil, err
		}

		var user userDocument
		err = s.users.FindOneAndUpdate(sc, bson.M{"_id": link.UserID}, bson.M{
			"$set": bson.M{"isEmailVerified": true, "lastLogin": at, "updatedAt": at},
		}, options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&user)
		if err != nil {
			return nil, err
		}
		return &user, nil
	})
	if err != nil {
		return nil, translate(err)
	}

	return result.(*userDocument).model()
}

func (s *Store) PurgeMagicLinks(ctx context.Context, expiredBefore time.Time) (int64, error) {
	res, err := s.links.DeleteMany(ctx, bson.M{"expiresAt": bson.M{"$lt": expiredBefore.UTC()}})
	if err != nil {
		return 0, fmt.Errorf("purging magic links: %w", err)
	}
	return res.DeletedCount, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, store.ErrConflict),
		errors.Is(err, store.ErrTokenUnavailable):
		return err
	case errors.Is(err, mongo.ErrNoDocuments):
		return store.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return store.ErrConflict
	default:
		return err
	}
}
