package gameserver

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

const maxBody = 1 << 20

type spawnBody struct {
	Width  *int `json:"width"`
	Height *int `json:"height"`
}

type attackBody struct {
	Damage     *int `json:"damage"`
	CurrentHP  *int `json:"current_hp"`
	XPReward   *int `json:"xp_reward"`
	GoldReward *int `json:"gold_reward"`
}

func (s *Server) handleUser(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.User())
}

func (s *Server) handleSpawn(w http.ResponseWriter, r *http.Request) {
	var body spawnBody
	if !decode(w, r, &body) {
		return
	}
	writeJSON(w, http.StatusOK, s.Spawn(or(body.Width, 300), or(body.Height, 250)))
}

func (s *Server) handleAttack(w http.ResponseWriter, r *http.Request) {
	var body attackBody
	if !decode(w, r, &body) {
		return
	}
	writeJSON(w, http.StatusOK, s.Attack(
		or(body.Damage, 10), or(body.CurrentHP, 0), or(body.XPReward, 0), or(body.GoldReward, 1)))
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	u := s.User()
	writeJSON(w, http.StatusOK, map[string]any{
		"user":          u,
		"next_level_xp": u.XPToNextLevel - u.XP,
	})
}

// decode reads an optional JSON object body. An empty body is an empty object.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		status := http.StatusBadRequest
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			status = http.StatusRequestEntityTooLarge
		}
		writeJSON(w, status, map[string]string{"error": "read body: " + err.Error()})
		return false
	}
	if len(data) == 0 {
		return true
	}
	if err := json.Unmarshal(data, v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return false
	}
	return true
}

func or(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
