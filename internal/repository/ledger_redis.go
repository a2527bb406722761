package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"payment-relay/internal/model"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "relay:reconcile:"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// deletes the key only while it still holds the caller's in-progress claim
var releaseScript = redis.NewScript(`
local v = redis.call("GET", KEYS[1])
if v and string.find(v, ARGV[1], 1, true) and string.find(v, ARGV[2], 1, true) then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// replaces the key only while the caller still owns it
var completeScript = redis.NewScript(`
local v = redis.call("GET", KEYS[1])
if v and not string.find(v, ARGV[1], 1, true) then
	return 0
end
redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
return 1
`)

type redisLedgerImpl struct {
	client       *redis.Client
	claimTimeout time.Duration
	retention    time.Duration
}

// NewRedisLedger uses SETNX with expiry: an in-progress claim lapses after claimTimeout,
// a completed one after retention.
func NewRedisLedger(client *redis.Client, claimTimeout, retention time.Duration) ReconciliationLedger {
	if retention <= 0 {
		retention = 7 * 24 * time.Hour
	}
	return &redisLedgerImpl{
		client:       client,
		claimTimeout: claimTimeout,
		retention:    retention,
	}
}

func (r *redisLedgerImpl) Claim(ctx context.Context, invoiceID string) (*model.ReconciliationClaim, bool, error) {
	key := redisKeyPrefix + invoiceID
	claim := newClaim(invoiceID, uuid.NewString(), time.Now())

	data, err := json.Marshal(claim)
	if err != nil {
		return nil, false, fmt.Errorf("marshal claim: %w", err)
	}

	for attempt := 0; attempt < 2; attempt++ {
		ok, err := r.client.SetNX(ctx, key, data, r.claimTimeout).Result()
		if err != nil {
			return nil, false, fmt.Errorf("setnx claim: %w", err)
		}
		if ok {
			return claim, true, nil
		}

		raw, err := r.client.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, false, fmt.Errorf("get claim: %w", err)
		}

		var existing model.ReconciliationClaim
		if err := json.Unmarshal([]byte(raw), &existing); err != nil {
			return nil, false, fmt.Errorf("unmarshal claim: %w", err)
		}
		return &existing, false, nil
	}

	return &model.ReconciliationClaim{InvoiceID: invoiceID, Status: model.ClaimInProgress}, false, nil
}

func (r *redisLedgerImpl) Complete(ctx context.Context, claim *model.ReconciliationClaim, order *model.OrderResult) error {
	done := *claim
	completeClaim(&done, order, time.Now())

	data, err := json.Marshal(&done)
	if err != nil {
		return fmt.Errorf("marshal claim: %w", err)
	}

	err = completeScript.Run(ctx, r.client,
		[]string{redisKeyPrefix + claim.InvoiceID},
		ownerMarker(claim.Owner), data, r.retention.Milliseconds(),
	).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("complete claim: %w", err)
	}
	return nil
}

func (r *redisLedgerImpl) Release(ctx context.Context, claim *model.ReconciliationClaim) error {
	err := releaseScript.Run(ctx, r.client,
		[]string{redisKeyPrefix + claim.InvoiceID},
		ownerMarker(claim.Owner), statusMarker(model.ClaimInProgress),
	).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release claim: %w", err)
	}
	return nil
}

func (r *redisLedgerImpl) Close() error {
	return r.client.Close()
}

func ownerMarker(owner string) string {
	return `"owner":"` + owner + `"`
}

func statusMarker(status model.ClaimStatus) string {
	return `"status":"` + string(status) + `"`
}
