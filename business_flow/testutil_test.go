package businessflow

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/amirphl/sms-receiver/app/dto"
	"github.com/amirphl/sms-receiver/app/services"
	"github.com/amirphl/sms-receiver/repository"
	"github.com/amirphl/sms-receiver/utils"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testPrefix = "flowtest:"

// testStore bundles an in-process Redis with the repositories and flows built on it
type testStore struct {
	mr        *miniredis.Miniredis
	rdb       *redis.Client
	smsRepo   repository.SMSRepository
	indexRepo repository.SMSIndexRepository
	ingest    SMSIngestFlow
	query     SMSQueryFlow
	repair    SMSRepairFlow
}

func newTestStore(t *testing.T) *testStore {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return newTestStoreWithClient(t, mr, rdb)
}

func newTestStoreWithClient(t *testing.T, mr *miniredis.Miniredis, rdb *redis.Client) *testStore {
	t.Helper()
	var cmdable redis.Cmdable
	if rdb != nil {
		cmdable = rdb
	}
	smsRepo := repository.NewSMSRepository(cmdable, testPrefix, utils.SMSRetention)
	indexRepo := repository.NewSMSIndexRepository(cmdable, testPrefix, utils.SMSRetention)
	log := zap.NewNop()

	return &testStore{
		mr:        mr,
		rdb:       rdb,
		smsRepo:   smsRepo,
		indexRepo: indexRepo,
		ingest:    NewSMSIngestFlow(smsRepo, indexRepo, services.NewLogCarrier(log), log),
		query:     NewSMSQueryFlow(smsRepo, indexRepo, log),
		repair:    NewSMSRepairFlow(smsRepo, indexRepo, log),
	}
}

// receiveJSON posts an inbound JSON payload and returns the stored id
func (s *testStore) receiveJSON(t *testing.T, body string) string {
	t.Helper()
	res, err := s.ingest.Receive(context.Background(), &dto.IngestSMSRequest{
		ContentType: "application/json",
		Body:        []byte(body),
	}, NewClientMetadata("127.0.0.1", "test"))
	require.NoError(t, err)
	require.NotEmpty(t, res.SMSID)
	return res.SMSID
}
