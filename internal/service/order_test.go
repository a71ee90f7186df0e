package service

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/DukeRupert/packs/internal/domain"
	"github.com/DukeRupert/packs/internal/repository"
	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
	"github.com/stretchr/testify/assert"
)

func TestOrderToDomain_UserInfo(t *testing.T) {
	t.Run("decodes stored buyer", func(t *testing.T) {
		s := &orderService{logger: newTestLogger()}
		info := domain.UserInfo{ID: 7, Email: "ada@example.com", FirstName: "Ada", LastName: "Lovelace"}
		raw, err := json.Marshal(info)
		assert.NoError(t, err)

		order := s.toDomain(repository.Order{
			ID:          31,
			PurchaseKey: uuid.New(),
			Status:      string(domain.OrderStatusComplete),
			UserInfo:    pqtype.NullRawMessage{RawMessage: raw, Valid: true},
		})

		assert.Equal(t, info, order.UserInfo)
	})

	t.Run("logs undecodable column", func(t *testing.T) {
		var buf bytes.Buffer
		s := &orderService{logger: slog.New(slog.NewTextHandler(&buf, nil))}

		order := s.toDomain(repository.Order{
			ID:          31,
			PurchaseKey: uuid.New(),
			Status:      string(domain.OrderStatusComplete),
			UserInfo:    pqtype.NullRawMessage{RawMessage: json.RawMessage(`{"id":"seven"}`), Valid: true},
		})

		assert.Equal(t, int64(31), order.ID)
		assert.Contains(t, buf.String(), "failed to decode order user info")
		assert.Contains(t, buf.String(), "order_id=31")
	})

	t.Run("null column is silent", func(t *testing.T) {
		var buf bytes.Buffer
		s := &orderService{logger: slog.New(slog.NewTextHandler(&buf, nil))}

		order := s.toDomain(repository.Order{ID: 32, PurchaseKey: uuid.New()})

		assert.Equal(t, domain.UserInfo{}, order.UserInfo)
		assert.Empty(t, buf.String())
	})
}
