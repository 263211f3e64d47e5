package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/openludo/arena/game/engine"
)

const (
	colRooms  = "rooms"
	colSeats  = "room_players"
	colTeams  = "room_teams"
	colEvents = "game_events"
	colUsers  = "users"
)

// Mongo is the production Store binding.
type Mongo struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewMongo connects, pings and ensures indexes.
func NewMongo(ctx context.Context, uri, dbName string) (*Mongo, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	m := &Mongo{client: client, db: client.Database(dbName)}
	if err := m.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return m, nil
}

func (m *Mongo) ensureIndexes(ctx context.Context) error {
	_, err := m.db.Collection(colSeats).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "roomId", Value: 1}, {Key: "userId", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("seat index: %w", err)
	}
	_, err = m.db.Collection(colRooms).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "code", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("room code index: %w", err)
	}
	_, err = m.db.Collection(colEvents).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "roomId", Value: 1}, {Key: "createdAt", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("event index: %w", err)
	}
	return nil
}

// Close disconnects the client.
func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// Ping implements Store.
func (m *Mongo) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, readpref.Primary())
}

// CreateRoom implements Store.
func (m *Mongo) CreateRoom(ctx context.Context, room *Room) error {
	_, err := m.db.Collection(colRooms).InsertOne(ctx, room)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert room: %w", err)
	}
	return nil
}

// GetRoom implements Store.
func (m *Mongo) GetRoom(ctx context.Context, id string) (*Room, error) {
	var room Room
	err := m.db.Collection(colRooms).FindOne(ctx, bson.M{"_id": id}).Decode(&room)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find room %s: %w", id, err)
	}
	return &room, nil
}

// GetRoomByCode implements Store.
func (m *Mongo) GetRoomByCode(ctx context.Context, code string) (*Room, error) {
	var room Room
	err := m.db.Collection(colRooms).FindOne(ctx, bson.M{"code": code}).Decode(&room)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find room by code: %w", err)
	}
	return &room, nil
}

// ListPublicWaiting implements Store.
func (m *Mongo) ListPublicWaiting(ctx context.Context) ([]*Room, error) {
	cur, err := m.db.Collection(colRooms).Find(ctx,
		bson.M{"status": RoomWaiting, "settings.visibility": VisibilityPublic},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}).SetLimit(100))
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	var rooms []*Room
	if err := cur.All(ctx, &rooms); err != nil {
		return nil, fmt.Errorf("decode rooms: %w", err)
	}
	return rooms, nil
}

// UpdateRoom implements Store.
func (m *Mongo) UpdateRoom(ctx context.Context, room *Room) error {
	room.UpdatedAt = time.Now()
	res, err := m.db.Collection(colRooms).ReplaceOne(ctx, bson.M{"_id": room.ID}, room)
	if err != nil {
		return fmt.Errorf("update room %s: %w", room.ID, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// UpsertRoomState implements Store. The whole runtime snapshot replaces the
// room's state fields in one update, which makes retried flushes idempotent.
func (m *Mongo) UpsertRoomState(ctx context.Context, roomID string, status RoomStatus, currentPlayerIndex int, gb *engine.GameBoard) error {
	_, err := m.db.Collection(colRooms).UpdateOne(ctx,
		bson.M{"_id": roomID},
		bson.M{"$set": bson.M{
			"status":             status,
			"currentPlayerIndex": currentPlayerIndex,
			"gameBoard":          gb,
			"updatedAt":          time.Now(),
		}})
	if err != nil {
		return fmt.Errorf("flush room %s: %w", roomID, err)
	}
	return nil
}

// DeleteRoom implements Store.
func (m *Mongo) DeleteRoom(ctx context.Context, id string) error {
	res, err := m.db.Collection(colRooms).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete room %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateSeat implements Store. The unique (roomId, userId) index serializes
// concurrent joins.
func (m *Mongo) CreateSeat(ctx context.Context, seat *Seat) error {
	_, err := m.db.Collection(colSeats).InsertOne(ctx, seat)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert seat: %w", err)
	}
	return nil
}

// GetSeat implements Store.
func (m *Mongo) GetSeat(ctx context.Context, roomID, userID string) (*Seat, error) {
	var seat Seat
	err := m.db.Collection(colSeats).FindOne(ctx, bson.M{"roomId": roomID, "userId": userID}).Decode(&seat)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find seat: %w", err)
	}
	return &seat, nil
}

// GetSeatByID implements Store.
func (m *Mongo) GetSeatByID(ctx context.Context, id string) (*Seat, error) {
	var seat Seat
	err := m.db.Collection(colSeats).FindOne(ctx, bson.M{"_id": id}).Decode(&seat)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find seat %s: %w", id, err)
	}
	return &seat, nil
}

// ListSeats implements Store, ordered by slot position.
func (m *Mongo) ListSeats(ctx context.Context, roomID string) ([]*Seat, error) {
	cur, err := m.db.Collection(colSeats).Find(ctx, bson.M{"roomId": roomID},
		options.Find().SetSort(bson.D{{Key: "position", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list seats: %w", err)
	}
	var seats []*Seat
	if err := cur.All(ctx, &seats); err != nil {
		return nil, fmt.Errorf("decode seats: %w", err)
	}
	return seats, nil
}

// UpdateSeat implements Store.
func (m *Mongo) UpdateSeat(ctx context.Context, seat *Seat) error {
	res, err := m.db.Collection(colSeats).ReplaceOne(ctx, bson.M{"_id": seat.ID}, seat)
	if err != nil {
		return fmt.Errorf("update seat %s: %w", seat.ID, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteSeat implements Store.
func (m *Mongo) DeleteSeat(ctx context.Context, id string) error {
	res, err := m.db.Collection(colSeats).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete seat %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteSeatsByRoom implements Store.
func (m *Mongo) DeleteSeatsByRoom(ctx context.Context, roomID string) error {
	_, err := m.db.Collection(colSeats).DeleteMany(ctx, bson.M{"roomId": roomID})
	if err != nil {
		return fmt.Errorf("delete seats for %s: %w", roomID, err)
	}
	return nil
}

// UpsertTeam implements Store.
func (m *Mongo) UpsertTeam(ctx context.Context, team *Team) error {
	_, err := m.db.Collection(colTeams).ReplaceOne(ctx,
		bson.M{"roomId": team.RoomID, "teamIndex": team.TeamIndex},
		team, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert team: %w", err)
	}
	return nil
}

// ListTeams implements Store.
func (m *Mongo) ListTeams(ctx context.Context, roomID string) ([]*Team, error) {
	cur, err := m.db.Collection(colTeams).Find(ctx, bson.M{"roomId": roomID},
		options.Find().SetSort(bson.D{{Key: "teamIndex", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	var teams []*Team
	if err := cur.All(ctx, &teams); err != nil {
		return nil, fmt.Errorf("decode teams: %w", err)
	}
	return teams, nil
}

// DeleteTeamsByRoom implements Store.
func (m *Mongo) DeleteTeamsByRoom(ctx context.Context, roomID string) error {
	_, err := m.db.Collection(colTeams).DeleteMany(ctx, bson.M{"roomId": roomID})
	if err != nil {
		return fmt.Errorf("delete teams for %s: %w", roomID, err)
	}
	return nil
}

// AppendEvent implements Store. Events are never updated or deleted.
func (m *Mongo) AppendEvent(ctx context.Context, event *GameEvent) error {
	_, err := m.db.Collection(colEvents).InsertOne(ctx, event)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// ListEvents implements Store, newest first.
func (m *Mongo) ListEvents(ctx context.Context, roomID string, limit int) ([]*GameEvent, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	cur, err := m.db.Collection(colEvents).Find(ctx, bson.M{"roomId": roomID},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}).SetLimit(int64(limit)))
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	var events []*GameEvent
	if err := cur.All(ctx, &events); err != nil {
		return nil, fmt.Errorf("decode events: %w", err)
	}
	return events, nil
}

// GetUser implements Store.
func (m *Mongo) GetUser(ctx context.Context, id string) (*User, error) {
	var user User
	err := m.db.Collection(colUsers).FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user %s: %w", id, err)
	}
	return &user, nil
}

// UpsertUser implements Store.
func (m *Mongo) UpsertUser(ctx context.Context, user *User) error {
	_, err := m.db.Collection(colUsers).ReplaceOne(ctx, bson.M{"_id": user.ID},
		user, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert user %s: %w", user.ID, err)
	}
	return nil
}
