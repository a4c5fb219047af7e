package di

import (
	"testing"

	internalrepo "Agora/internal/repository"
	"Agora/internal/services/performance"
	"Agora/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitializeAppWithLocalBackends(t *testing.T) {
	cfg := config.Default()
	cfg.Logging.Output = "stderr"

	app, err := InitializeApp(cfg)
	require.NoError(t, err)
	assert.NotNil(t, app)
}

func TestProvideStateStoreBackends(t *testing.T) {
	cfg := config.Default()

	cfg.State.Backend = "none"
	s, err := ProvideStateStore(cfg)
	require.NoError(t, err)
	assert.IsType(t, internalrepo.NoopStateStore{}, s)

	cfg.State.Backend = "memory"
	s, err = ProvideStateStore(cfg)
	require.NoError(t, err)
	assert.IsType(t, &internalrepo.CacheStateStore{}, s)
	require.NoError(t, s.Close())
}

func TestProvideDecisionPublisherWithoutKafka(t *testing.T) {
	assert.IsType(t, internalrepo.NoopPublisher{}, ProvideDecisionPublisher(config.Default(), nil))
}

func TestProvideScorerKeepsStockProfiles(t *testing.T) {
	cfg := config.Default()
	cfg.Council.Profiles = map[string]map[string]float64{
		"momentum": {"technical": 4, "timing": 2},
	}

	s, err := ProvideScorer(cfg, performance.New())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"balanced", "fundamental", "momentum", "technical"}, s.Profiles())

	res, err := s.Score(map[string]float64{"orion": 80, "atlas": 20}, "momentum")
	require.NoError(t, err)
	assert.Equal(t, "momentum", res.Profile)
	assert.Greater(t, res.Score, 50.0)
}

func TestProvideConflictDetectorRejectsBadRegistry(t *testing.T) {
	cfg := config.Default()
	cfg.Council.Modules = map[string]string{"atlas": "astrology"}
	_, err := ProvideConflictDetector(cfg)
	assert.Error(t, err)
}
