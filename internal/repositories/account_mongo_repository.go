package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pokedex/internal/models"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// AccountsCollection is the name of the collection holding account documents.
const AccountsCollection = "accounts"

// MongoAccountRepository is a MongoDB implementation of AccountRepository.
// Favorites are embedded in the account document and mutated with single conditional updates.
type MongoAccountRepository struct {
	coll *mongo.Collection
}

// NewMongoAccountRepository creates a new MongoAccountRepository and makes sure the unique indexes exist.
func NewMongoAccountRepository(ctx context.Context, db *mongo.Database) (*MongoAccountRepository, error) {
	coll := db.Collection(AccountsCollection)
	_, err := coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create account indexes: %w", err)
	}
	return &MongoAccountRepository{coll: coll}, nil
}

// Create inserts a new account document.
func (r *MongoAccountRepository) Create(ctx context.Context, account *models.Account) error {
	if account.ID == "" {
		account.ID = uuid.New().String()
	}
	// $push on a null field fails, so the array must exist from the start.
	if account.Favorites == nil {
		account.Favorites = models.Favorites{}
	}
	now := time.Now().UTC()
	account.CreatedAt = now
	account.UpdatedAt = now

	if _, err := r.coll.InsertOne(ctx, account); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("failed to create account %s: %w", account.Username, ErrDuplicate)
		}
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

// GetByID retrieves an account by its ID.
func (r *MongoAccountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	return r.findOne(ctx, bson.M{"_id": id}, "ID "+id)
}

// GetByUsername retrieves an account by its username.
func (r *MongoAccountRepository) GetByUsername(ctx context.Context, username string) (*models.Account, error) {
	return r.findOne(ctx, bson.M{"username": username}, "username "+username)
}

// GetByEmail retrieves an account by its email.
func (r *MongoAccountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	return r.findOne(ctx, bson.M{"email": email}, "email "+email)
}

func (r *MongoAccountRepository) findOne(ctx context.Context, filter bson.M, what string) (*models.Account, error) {
	var account models.Account
	if err := r.coll.FindOne(ctx, filter).Decode(&account); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("account with %s: %w", what, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get account by %s: %w", what, err)
	}
	if account.Favorites == nil {
		account.Favorites = models.Favorites{}
	}
	return &account, nil
}

// AppendFavorite pushes entry only if no favorite with the same pokemon id exists.
func (r *MongoAccountRepository) AppendFavorite(ctx context.Context, id string, entry models.FavoriteEntry) (*models.Account, error) {
	filter := bson.M{
		"_id":                 id,
		"favorites.pokemonId": bson.M{"$ne": entry.PokemonID},
	}
	update := bson.M{
		"$push": bson.M{"favorites": entry},
		"$set":  bson.M{"updatedAt": time.Now().UTC()},
		"$inc":  bson.M{"version": 1},
	}

	account, err := r.findOneAndUpdate(ctx, filter, update)
	if errors.Is(err, mongo.ErrNoDocuments) {
		// Either the account is gone or the filter rejected a duplicate.
		if _, gerr := r.GetByID(ctx, id); gerr != nil {
			return nil, gerr
		}
		return nil, fmt.Errorf("pokemon %d: %w", entry.PokemonID, ErrFavoriteExists)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to add favorite for account %s: %w", id, err)
	}
	return account, nil
}

// RemoveFavorite pulls the favorite with pokemonID only if it is present.
func (r *MongoAccountRepository) RemoveFavorite(ctx context.Context, id string, pokemonID int) (*models.Account, error) {
	filter := bson.M{
		"_id":                 id,
		"favorites.pokemonId": pokemonID,
	}
	update := bson.M{
		"$pull": bson.M{"favorites": bson.M{"pokemonId": pokemonID}},
		"$set":  bson.M{"updatedAt": time.Now().UTC()},
		"$inc":  bson.M{"version": 1},
	}

	account, err := r.findOneAndUpdate(ctx, filter, update)
	if errors.Is(err, mongo.ErrNoDocuments) {
		if _, gerr := r.GetByID(ctx, id); gerr != nil {
			return nil, gerr
		}
		return nil, fmt.Errorf("pokemon %d: %w", pokemonID, ErrFavoriteNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to remove favorite for account %s: %w", id, err)
	}
	return account, nil
}

// SetProfileImage stores the uploaded image reference on the account.
func (r *MongoAccountRepository) SetProfileImage(ctx context.Context, id string, ref string) (*models.Account, error) {
	update := bson.M{"$set": bson.M{"profileImage": ref, "updatedAt": time.Now().UTC()}}
	account, err := r.findOneAndUpdate(ctx, bson.M{"_id": id}, update)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("account with ID %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update profile image for account %s: %w", id, err)
	}
	return account, nil
}

func (r *MongoAccountRepository) findOneAndUpdate(ctx context.Context, filter, update bson.M) (*models.Account, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var account models.Account
	if err := r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&account); err != nil {
		return nil, err
	}
	if account.Favorites == nil {
		account.Favorites = models.Favorites{}
	}
	return &account, nil
}
