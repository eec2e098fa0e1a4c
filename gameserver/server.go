// Package gameserver is a reference implementation of the game service the
// relay talks to: it spawns monsters sized to ad slots, resolves attacks and
// keeps one player's progression in memory.
package gameserver

import (
	"log/slog"
	"math/rand/v2"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hazyhaar/adrpg/monster"
	"github.com/hazyhaar/adrpg/shield"
)

// Rand is the randomness the server draws from.
type Rand interface {
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// Server holds the player state.
type Server struct {
	rng    Rand
	logger *slog.Logger

	mu   sync.Mutex
	user monster.User
}

// Option configures a Server.
type Option func(*Server)

// WithRand sets the random source. Default: math/rand/v2.
func WithRand(r Rand) Option { return func(s *Server) { s.rng = r } }

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option { return func(s *Server) { s.logger = l } }

// New returns a server with a level 1 player.
func New(opts ...Option) *Server {
	s := &Server{
		rng:    globalRand{},
		logger: slog.Default(),
		user:   monster.User{Level: 1, XPToNextLevel: 100},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Routes returns the HTTP API.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(shield.RequestLog(s.logger))
	r.Use(shield.AllowAnyOrigin)
	r.Use(shield.MaxBody(maxBody))
	s.RegisterHTTP(r)
	return r
}

// RegisterHTTP mounts the API on r.
func (s *Server) RegisterHTTP(r chi.Router) {
	r.Get("/user", s.handleUser)
	r.Post("/monster", s.handleSpawn)
	r.Post("/attack", s.handleAttack)
	r.Get("/stats", s.handleStats)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok"))
	})
}

// Spawn creates a monster for a width×height slot.
func (s *Server) Spawn(width, height int) monster.Monster {
	tier := TierFor(width, height)
	level := LevelFor(width, height, tier)

	s.mu.Lock()
	defer s.mu.Unlock()

	templates := Bestiary[tier]
	t := templates[s.rng.IntN(len(templates))]
	hp := scale(t.BaseHP, level, 0.15)
	return monster.Monster{
		ID:         int64(1000 + s.rng.IntN(9000)),
		Name:       t.Name,
		Level:      level,
		Tier:       tier,
		Image:      t.Image,
		CurrentHP:  hp,
		MaxHP:      hp,
		XPReward:   scale(t.XPReward, level, 0.12),
		GoldReward: level + s.rng.IntN(2*level+1),
		Width:      width,
		Height:     height,
	}
}

// Outcome is the attack response body.
type Outcome struct {
	monster.AttackResult
	User monster.User `json:"user_state"`
}

// Attack applies damage to a monster at currentHP and credits the player
// on a kill.
func (s *Server) Attack(damage, currentHP, xpReward, goldReward int) Outcome {
	newHP := max(0, currentHP-damage)
	defeated := newHP == 0

	s.mu.Lock()
	defer s.mu.Unlock()

	reward := &monster.Reward{}
	if defeated {
		s.user.XP += xpReward
		s.user.Gold += goldReward
		s.user.MonstersSlain++
		reward.XP, reward.Gold, reward.TotalGold = xpReward, goldReward, s.user.Gold

		if s.user.XP >= s.user.XPToNextLevel {
			s.user.Level++
			s.user.XP -= s.user.XPToNextLevel
			s.user.XPToNextLevel = int(float64(s.user.XPToNextLevel) * 1.25)
			reward.LevelUp = true
			reward.NewLevel = s.user.Level
		}
		s.logger.Info("gameserver: monster slain", "level", s.user.Level, "gold", s.user.Gold)
	}
	return Outcome{
		AttackResult: monster.AttackResult{CurrentHP: newHP, Defeated: defeated, Reward: reward},
		User:         s.user,
	}
}

// User returns the player state.
func (s *Server) User() monster.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}
