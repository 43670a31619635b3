package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/cropscan/apiserver/types"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type userDocument struct {
	ID       primitive.ObjectID `bson:"_id,omitempty"`
	Name     string             `bson:"name,omitempty"`
	Email    string             `bson:"email"`
	Password string             `bson:"password,omitempty"`
	Phone    string             `bson:"phone,omitempty"`
	Location string             `bson:"location,omitempty"`
	Role     string             `bson:"role"`
	Profile  map[string]any     `bson:",inline"`
}

func (d userDocument) toUser() types.User {
	return types.User{
		ID:       d.ID.Hex(),
		Name:     d.Name,
		Email:    d.Email,
		Password: d.Password,
		Phone:    d.Phone,
		Location: d.Location,
		Role:     d.Role,
		Profile:  d.profile(),
	}
}

// profile drops mapping metadata other writers leave on the document.
func (d userDocument) profile() map[string]any {
	if len(d.Profile) == 0 {
		return nil
	}
	out := make(map[string]any, len(d.Profile))
	for key, value := range d.Profile {
		if key == "_class" {
			continue
		}
		out[key] = value
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// MongoUserRepository handles persistence for users in a MongoDB collection.
type MongoUserRepository struct {
	coll *mongo.Collection
}

func NewMongoUserRepository(coll *mongo.Collection) *MongoUserRepository {
	return &MongoUserRepository{coll: coll}
}

// EnsureIndexes creates the unique email index.
func (r *MongoUserRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("email_unique"),
	})
	if err != nil {
		return fmt.Errorf("create user indexes: %w", err)
	}
	return nil
}

func (r *MongoUserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	var doc userDocument
	err := r.coll.FindOne(ctx, bson.M{"email": email}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, fmt.Errorf("get user by email: %w", err)
	}
	return doc.toUser(), nil
}

func (r *MongoUserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	doc := userDocument{
		Name:     user.Name,
		Email:    user.Email,
		Password: user.Password,
		Phone:    user.Phone,
		Location: user.Location,
		Role:     user.Role,
		Profile:  user.Profile,
	}
	result, err := r.coll.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return types.User{}, ErrDuplicate
		}
		return types.User{}, fmt.Errorf("create user: %w", err)
	}
	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		user.ID = oid.Hex()
	}
	return user, nil
}
