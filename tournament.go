package main

import (
	"crypto/rand"
	"time"
)

// Genres the wheel can land on. The admin page displays the same list,
// received via the "genres" message on admin-join.
var genres = []string{"Ex-Yu", "Rep", "Narodna", "Pop", "Turbo Folk"}

type Phase string

const (
	PhaseWaiting   Phase = "waiting"
	PhaseWheel     Phase = "wheel"
	PhaseBuzzer    Phase = "buzzer"
	PhaseAnswering Phase = "answering"
)

type Round string

const (
	RoundQuarterfinals Round = "quarterfinals"
	RoundSemifinals    Round = "semifinals"
	RoundFinal         Round = "final"
)

// Match is one bracket node. Empty strings mean the slot is not yet
// populated; Winner is set exactly once, when the match resolves.
type Match struct {
	Team1  string `json:"team1"`
	Team2  string `json:"team2"`
	Winner string `json:"winner"`
	Active bool   `json:"active"`
}

func (m *Match) populated() bool {
	return m.Team1 != "" && m.Team2 != ""
}

func (m *Match) resolved() bool {
	return m.Winner != ""
}

// FinalMatch carries the running first-to-two score on top of a normal
// bracket node.
type FinalMatch struct {
	Match
	Score1 int `json:"score1"`
	Score2 int `json:"score2"`
}

type Bracket struct {
	Quarterfinals [4]Match   `json:"quarterfinals"`
	Semifinals    [2]Match   `json:"semifinals"`
	Final         FinalMatch `json:"final"`
}

// MatchRef addresses one bracket node by round and index. The index is
// ignored for the final.
type MatchRef struct {
	Round Round `json:"round"`
	Index int   `json:"index"`
}

type Tournament struct {
	Started      bool      `json:"started"`
	Bracket      Bracket   `json:"bracket"`
	CurrentMatch *MatchRef `json:"currentMatch"`
	Phase        Phase     `json:"phase"`
}

func newTournament() *Tournament {
	return &Tournament{Phase: PhaseWaiting}
}

// match resolves a MatchRef to the bracket node it names, or nil if the
// reference is out of range.
func (t *Tournament) match(ref MatchRef) *Match {
	switch ref.Round {
	case RoundQuarterfinals:
		if ref.Index < 0 || ref.Index >= len(t.Bracket.Quarterfinals) {
			return nil
		}
		return &t.Bracket.Quarterfinals[ref.Index]
	case RoundSemifinals:
		if ref.Index < 0 || ref.Index >= len(t.Bracket.Semifinals) {
			return nil
		}
		return &t.Bracket.Semifinals[ref.Index]
	case RoundFinal:
		return &t.Bracket.Final.Match
	default:
		return nil
	}
}

func (t *Tournament) currentMatch() *Match {
	if t.CurrentMatch == nil {
		return nil
	}
	return t.match(*t.CurrentMatch)
}

// otherTeam returns the current match's other slot, or "" when no match
// is selected or the name is not part of it.
func (t *Tournament) otherTeam(name string) string {
	m := t.currentMatch()
	if m == nil {
		return ""
	}
	switch name {
	case m.Team1:
		return m.Team2
	case m.Team2:
		return m.Team1
	default:
		return ""
	}
}

// start seeds the quarterfinals with a uniform random pairing of the
// given names. It requires exactly eight teams and leaves the bracket
// untouched otherwise.
func (t *Tournament) start(names []string) bool {
	if len(names) != 8 {
		return false
	}

	shuffled := shuffleNames(names)

	for i := range t.Bracket.Quarterfinals {
		t.Bracket.Quarterfinals[i] = Match{
			Team1: shuffled[i*2],
			Team2: shuffled[i*2+1],
		}
	}
	t.Bracket.Semifinals = [2]Match{}
	t.Bracket.Final = FinalMatch{}

	t.Started = true
	t.CurrentMatch = nil
	t.Phase = PhaseWaiting

	return true
}

// advanceWinners fills semifinal and final slots as their feeding matches
// resolve. Safe to call after every match; does nothing until both feeders
// have winners.
func (t *Tournament) advanceWinners() {
	qf := &t.Bracket.Quarterfinals
	sf := &t.Bracket.Semifinals

	if qf[0].resolved() && qf[1].resolved() {
		sf[0].Team1 = qf[0].Winner
		sf[0].Team2 = qf[1].Winner
	}
	if qf[2].resolved() && qf[3].resolved() {
		sf[1].Team1 = qf[2].Winner
		sf[1].Team2 = qf[3].Winner
	}

	if sf[0].resolved() && sf[1].resolved() {
		t.Bracket.Final.Team1 = sf[0].Winner
		t.Bracket.Final.Team2 = sf[1].Winner
	}
}

// GameState is the ephemeral per-round state. It is wiped whenever a new
// match is selected or a round concludes.
type GameState struct {
	Genre           string
	BuzzedTeam      string
	BuzzTime        int64 // milliseconds from round start to buzz
	CanBuzz         []string
	StartTime       time.Time
	CurrentAnswerer string
}

func (g *GameState) canTeamBuzz(name string) bool {
	for _, t := range g.CanBuzz {
		if t == name {
			return true
		}
	}
	return false
}

func (g *GameState) dropFromBuzz(name string) {
	dst := g.CanBuzz[:0]
	for _, t := range g.CanBuzz {
		if t != name {
			dst = append(dst, t)
		}
	}
	g.CanBuzz = dst
}

// shuffleNames returns a Fisher-Yates shuffled copy, fed by crypto/rand.
func shuffleNames(names []string) []string {
	shuffled := make([]string, len(names))
	copy(shuffled, names)

	for i := len(shuffled) - 1; i > 0; i-- {
		j := randomIndex(i + 1)
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}

	return shuffled
}

func randomIndex(n int) int {
	var b [1]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0
	}
	return int(b[0]) % n
}
