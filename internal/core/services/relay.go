package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/schwenzfeuer/wunschkiste-sub000/internal/core/contracts"
	"github.com/schwenzfeuer/wunschkiste-sub000/internal/core/domain"
	"github.com/schwenzfeuer/wunschkiste-sub000/pkg/protocol"
)

var tracer = otel.Tracer("relay-service")

type IRelayService interface {
	// HandleConnect joins a fresh connection to its room and checks it in with presence.
	HandleConnect(ctx context.Context, roomKey string, client contracts.Client)
	// HandleDisconnect removes the connection and evicts the room once empty.
	HandleDisconnect(ctx context.Context, roomKey string, client contracts.Client)
	// HandleHeartbeat refreshes presence on a fixed interval until ctx is done.
	HandleHeartbeat(ctx context.Context, roomKey string, connID string)
	// HandleNotify fans an invalidate event out to the room, if one exists.
	// Fire-and-forget; never creates a room.
	HandleNotify(ctx context.Context, roomKey string)
	// HandleChatBroadcast fans a pre-persisted chat message out to the room,
	// if one exists. Never creates a room.
	HandleChatBroadcast(ctx context.Context, roomKey string, message json.RawMessage) error
	// Stats reports room occupancy without creating the room.
	Stats(ctx context.Context, roomKey string) domain.RoomStats
}

// RelayService orchestrates the room registry and the optional presence
// store behind the HTTP handlers. Presence is an enhancement: a nil store is
// skipped, a failing one is logged and ignored.
type RelayService struct {
	rooms     contracts.RoomRegistry
	presence  contracts.PresenceStore
	log       *slog.Logger
	heartbeat time.Duration
}

func NewRelayService(
	log *slog.Logger,
	rooms contracts.RoomRegistry,
	presence contracts.PresenceStore,
) *RelayService {
	return &RelayService{
		log:       log,
		rooms:     rooms,
		presence:  presence,
		heartbeat: domain.HeartbeatInterval,
	}
}

func (s *RelayService) HandleConnect(ctx context.Context, roomKey string, client contracts.Client) {
	ctx, span := tracer.Start(ctx, "RelayService.HandleConnect", trace.WithAttributes(
		attribute.String("room_key", roomKey),
		attribute.String("conn_id", client.ID()),
	))
	defer span.End()
	room := s.rooms.Resolve(roomKey)
	room.Add(client)
	span.SetAttributes(attribute.Int("room_size", room.Len()))
	if s.presence != nil {
		if err := s.presence.CheckIn(ctx, roomKey, client.ID(), domain.PresenceTTL); err != nil {
			span.RecordError(err)
			s.log.WarnContext(ctx, "relay - handle connect - presence check-in failed", "room_key", roomKey, "conn_id", client.ID(), "err", err)
		}
	}
	s.log.InfoContext(ctx, "relay - handle connect - connection joined room", "room_key", roomKey, "conn_id", client.ID(), "room_size", room.Len())
}

func (s *RelayService) HandleDisconnect(ctx context.Context, roomKey string, client contracts.Client) {
	ctx, span := tracer.Start(ctx, "RelayService.HandleDisconnect", trace.WithAttributes(
		attribute.String("room_key", roomKey),
		attribute.String("conn_id", client.ID()),
	))
	defer span.End()
	room, ok := s.rooms.Peek(roomKey)
	if !ok {
		return
	}
	room.Remove(client.ID())
	client.Close()
	if room.Len() > 0 {
		s.log.InfoContext(ctx, "relay - handle disconnect - connection left room", "room_key", roomKey, "conn_id", client.ID(), "room_size", room.Len())
		return
	}
	s.rooms.Release(roomKey)
	if s.presence != nil {
		if err := s.presence.ClearRoom(ctx, roomKey); err != nil {
			span.RecordError(err)
			s.log.WarnContext(ctx, "relay - handle disconnect - presence clear failed", "room_key", roomKey, "err", err)
		}
	}
	s.log.InfoContext(ctx, "relay - handle disconnect - room empty, evicted", "room_key", roomKey, "conn_id", client.ID())
}

// HandleHeartbeat keeps the presence entry of one connection alive. Runs in
// its own goroutine per connection and stops with the connection context.
func (s *RelayService) HandleHeartbeat(ctx context.Context, roomKey string, connID string) {
	if s.presence == nil {
		return
	}
	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.log.DebugContext(ctx, "relay - handle heartbeat - stopped", "room_key", roomKey, "conn_id", connID)
			return
		case <-ticker.C:
			spanCtx, span := tracer.Start(ctx, "Heartbeat.CheckIn")
			if err := s.presence.CheckIn(spanCtx, roomKey, connID, domain.PresenceTTL); err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "presence check-in failed")
				s.log.WarnContext(ctx, "relay - handle heartbeat - presence check-in failed", "room_key", roomKey, "conn_id", connID, "err", err)
			}
			span.End()
		}
	}
}

func (s *RelayService) HandleNotify(ctx context.Context, roomKey string) {
	ctx, span := tracer.Start(ctx, "RelayService.HandleNotify", trace.WithAttributes(
		attribute.String("room_key", roomKey),
	))
	defer span.End()
	// Broadcast paths never create or evict rooms. Resolve-then-Release here
	// would race a connecting client between its Resolve and Add, evicting
	// the room instance it is about to join.
	room, ok := s.rooms.Peek(roomKey)
	if !ok {
		s.log.DebugContext(ctx, "relay - handle notify - no listeners", "room_key", roomKey)
		return
	}
	room.Broadcast(ctx, protocol.Invalidate())
	span.SetAttributes(attribute.Int("room_size", room.Len()))
	s.log.InfoContext(ctx, "relay - handle notify - invalidate broadcast", "room_key", roomKey, "room_size", room.Len())
}

func (s *RelayService) HandleChatBroadcast(ctx context.Context, roomKey string, message json.RawMessage) error {
	ctx, span := tracer.Start(ctx, "RelayService.HandleChatBroadcast", trace.WithAttributes(
		attribute.String("room_key", roomKey),
		attribute.Int("payload_size", len(message)),
	))
	defer span.End()
	if !json.Valid(message) {
		span.RecordError(domain.ErrInvalidMessage)
		span.SetStatus(codes.Error, "invalid chat payload")
		s.log.ErrorContext(ctx, "relay - handle chat broadcast - invalid payload", "room_key", roomKey)
		return domain.ErrInvalidMessage
	}
	room, ok := s.rooms.Peek(roomKey)
	if !ok {
		s.log.DebugContext(ctx, "relay - handle chat broadcast - no listeners", "room_key", roomKey)
		return nil
	}
	room.Broadcast(ctx, protocol.ChatMessage(message))
	span.SetAttributes(attribute.Int("room_size", room.Len()))
	s.log.InfoContext(ctx, "relay - handle chat broadcast - message broadcast", "room_key", roomKey, "room_size", room.Len())
	return nil
}

func (s *RelayService) Stats(ctx context.Context, roomKey string) domain.RoomStats {
	ctx, span := tracer.Start(ctx, "RelayService.Stats", trace.WithAttributes(
		attribute.String("room_key", roomKey),
	))
	defer span.End()
	stats := domain.RoomStats{Key: roomKey}
	if room, ok := s.rooms.Peek(roomKey); ok {
		stats.Connections = room.Len()
	}
	if s.presence != nil {
		online, err := s.presence.OnlineConnections(ctx, roomKey)
		if err != nil {
			span.RecordError(err)
			s.log.WarnContext(ctx, "relay - stats - presence lookup failed", "room_key", roomKey, "err", err)
		} else {
			stats.Online = online
		}
	}
	return stats
}
