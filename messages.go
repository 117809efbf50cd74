package main

// ClientMessage covers every inbound message shape. Unused fields are
// simply absent on the wire.
type ClientMessage struct {
	Type  string `json:"type"`            // see toHubMsg for the full tag set
	Name  string `json:"name,omitempty"`  // team-join / kick-team
	Round Round  `json:"round,omitempty"` // select-match
	Index int    `json:"index"`           // select-match
}

// SimpleMessage is for notifications that carry nothing but their tag:
// "pong", "joined" acks aside, this covers "show-button", "round-started",
// "you-wrong-wait", "your-turn-answer", "both-wrong-new-song",
// "both-wrong", "you-won-match", "you-won-tournament" and "kicked".
type SimpleMessage struct {
	Type string `json:"type"`
}

type JoinedMessage struct {
	Type string `json:"type"` // "joined"
	Name string `json:"name"`
}

// TeamsMessage is the roster update broadcast on every join/leave.
type TeamsMessage struct {
	Type  string   `json:"type"` // "teams"
	Teams []string `json:"teams"`
	Count int      `json:"count"`
}

type GenresMessage struct {
	Type   string   `json:"type"` // "genres"
	Genres []string `json:"genres"`
}

// GameStateView is the externally visible subset of GameState included in
// every snapshot; eligibility sets and timers stay internal.
type GameStateView struct {
	Genre           string `json:"genre"`
	BuzzedTeam      string `json:"buzzedTeam"`
	CurrentAnswerer string `json:"currentAnswerer"`
	Phase           Phase  `json:"phase"`
}

// TournamentStateMessage is the full snapshot, broadcast after every
// state-mutating transition.
type TournamentStateMessage struct {
	Type       string        `json:"type"` // "tournament-state"
	Tournament *Tournament   `json:"tournament"`
	GameState  GameStateView `json:"gameState"`
}

type WheelResultMessage struct {
	Type  string `json:"type"` // "wheel-result"
	Genre string `json:"genre"`
}

// YouAnswerMessage tells the buzzing team it won the race, with its
// reaction time in milliseconds.
type YouAnswerMessage struct {
	Type string `json:"type"` // "you-answer"
	Time int64  `json:"time"`
}

type OpponentAnswersMessage struct {
	Type     string `json:"type"` // "opponent-answers"
	Opponent string `json:"opponent"`
}

// BuzzedMessage is the admin-facing buzz notification.
type BuzzedMessage struct {
	Type string `json:"type"` // "buzzed"
	Team string `json:"team"`
	Time int64  `json:"time"`
}

// MatchWinnerMessage doubles as the loser-facing "you-lost-match" and the
// admin-facing "match-winner".
type MatchWinnerMessage struct {
	Type    string `json:"type"`
	Winner  string `json:"winner"`
	IsFinal bool   `json:"isFinal"`
}

// ScoreMessage reports the running final score to the two finalists:
// "correct-next-round" for the scorer, "opponent-correct-next-round" for
// the other team.
type ScoreMessage struct {
	Type   string `json:"type"`
	Score1 int    `json:"score1"`
	Score2 int    `json:"score2"`
}

type FinalPointMessage struct {
	Type   string `json:"type"` // "final-point"
	Team   string `json:"team"`
	Score1 int    `json:"score1"`
	Score2 int    `json:"score2"`
}

type WrongOtherAnswersMessage struct {
	Type string `json:"type"` // "wrong-other-answers"
	Team string `json:"team"`
}
