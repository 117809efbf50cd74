// Muzikviz Buzzer Tournament
//
// Eight teams connect over websockets and an admin runs a single-elimination
// bracket (quarterfinals -> semifinals -> final). For each match the admin
// spins a genre wheel, starts a round, and the two teams race to buzz first.
// The buzzing team answers; the admin judges the answer.
//
// Features:
// - Persistent websocket per client at /ws; admin and teams share the endpoint
// - First-to-buzz wins the race; reaction time reported in milliseconds
// - Wrong answer hands over to the other team; both wrong washes the round
// - Final is first to two points, every other match is a single song
// - Team names are unique; a rejoin under the same name replaces the old
//   connection, so page reloads keep the seat
// - Disconnected teams survive a grace window before being purged
// - Admin can kick teams, reset the tournament, and re-randomize the bracket
// - Full tournament snapshot broadcast after every accepted transition
// - In-browser QR button to share the join URL, backed by go-qrcode

package main

import (
	"log"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

type Client struct {
	conn *websocket.Conn
	send chan any

	// name and admin are owned by the hub goroutine; the pumps never
	// touch them.
	name  string
	admin bool
}

// hubMsg is the closed set of events the hub processes. Everything that
// mutates hub state arrives through this type, on a single channel,
// handled by a single goroutine.
type hubMsg interface{ isHubMsg() }

type connect struct{ client *Client }
type disconnect struct{ client *Client }
type ping struct{ client *Client }
type adminJoin struct{ client *Client }
type teamJoin struct {
	client *Client
	name   string
}
type startTournament struct{ client *Client }
type resetTournament struct{ client *Client }
type selectMatch struct {
	client *Client
	ref    MatchRef
}
type spinWheel struct{ client *Client }
type startRound struct{ client *Client }
type buzz struct{ client *Client }
type correctAnswer struct{ client *Client }
type wrongAnswer struct{ client *Client }
type kickTeam struct {
	client *Client
	name   string
}
type purgeTeam struct{ name string }

func (connect) isHubMsg()         {}
func (disconnect) isHubMsg()      {}
func (ping) isHubMsg()            {}
func (adminJoin) isHubMsg()       {}
func (teamJoin) isHubMsg()        {}
func (startTournament) isHubMsg() {}
func (resetTournament) isHubMsg() {}
func (selectMatch) isHubMsg()     {}
func (spinWheel) isHubMsg()       {}
func (startRound) isHubMsg()      {}
func (buzz) isHubMsg()            {}
func (correctAnswer) isHubMsg()   {}
func (wrongAnswer) isHubMsg()     {}
func (kickTeam) isHubMsg()        {}
func (purgeTeam) isHubMsg()       {}

// toHubMsg maps a decoded wire message onto its hub event. Unknown tags
// are dropped here; role and phase preconditions are checked by the hub.
func toHubMsg(c *Client, m ClientMessage) (hubMsg, bool) {
	switch m.Type {
	case "ping":
		return ping{client: c}, true
	case "admin-join":
		return adminJoin{client: c}, true
	case "team-join":
		return teamJoin{client: c, name: m.Name}, true
	case "start-tournament":
		return startTournament{client: c}, true
	case "reset-tournament":
		return resetTournament{client: c}, true
	case "select-match":
		return selectMatch{client: c, ref: MatchRef{Round: m.Round, Index: m.Index}}, true
	case "spin-wheel":
		return spinWheel{client: c}, true
	case "start-round":
		return startRound{client: c}, true
	case "buzz":
		return buzz{client: c}, true
	case "correct-answer":
		return correctAnswer{client: c}, true
	case "wrong-answer":
		return wrongAnswer{client: c}, true
	case "kick-team":
		return kickTeam{client: c, name: m.Name}, true
	default:
		return nil, false
	}
}

// teamEntry is the registry record for one team name. client is nil while
// the team is disconnected; purge is the pending grace-window removal.
type teamEntry struct {
	client         *Client
	joinedAt       time.Time
	disconnectedAt time.Time
	purge          *time.Timer
}

type Hub struct {
	cfg   *Config
	inbox chan hubMsg

	clients map[*Client]bool
	teams   map[string]*teamEntry
	admin   *Client

	tournament *Tournament
	game       GameState
}

func newHub(cfg *Config) *Hub {
	return &Hub{
		cfg:        cfg,
		inbox:      make(chan hubMsg, 64),
		clients:    make(map[*Client]bool),
		teams:      make(map[string]*teamEntry),
		tournament: newTournament(),
	}
}

func (h *Hub) run() {
	for m := range h.inbox {
		h.handle(m)
	}
}

// handle processes exactly one event to completion before the next is
// considered, so no two transitions ever interleave.
func (h *Hub) handle(m hubMsg) {
	switch msg := m.(type) {
	case connect:
		h.clients[msg.client] = true
	case disconnect:
		h.handleDisconnect(msg.client)
	case ping:
		h.trySend(msg.client, SimpleMessage{Type: "pong"})
	case adminJoin:
		h.handleAdminJoin(msg.client)
	case teamJoin:
		h.handleTeamJoin(msg.client, msg.name)
	case startTournament:
		h.handleStartTournament(msg.client)
	case resetTournament:
		h.handleResetTournament(msg.client)
	case selectMatch:
		h.handleSelectMatch(msg.client, msg.ref)
	case spinWheel:
		h.handleSpinWheel(msg.client)
	case startRound:
		h.handleStartRound(msg.client)
	case buzz:
		h.handleBuzz(msg.client)
	case correctAnswer:
		h.handleCorrectAnswer(msg.client)
	case wrongAnswer:
		h.handleWrongAnswer(msg.client)
	case kickTeam:
		h.handleKickTeam(msg.client, msg.name)
	case purgeTeam:
		h.handlePurgeTeam(msg.name)
	}
}

func (h *Hub) isAdmin(c *Client) bool {
	return h.admin != nil && h.admin == c
}

// trySend delivers best-effort: clients that are gone or can't keep up
// are dropped, never errored on.
func (h *Hub) trySend(c *Client, msg any) {
	if c == nil || !h.clients[c] {
		return
	}

	select {
	case c.send <- msg:
	default:
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) broadcast(msg any) {
	for c := range h.clients {
		h.trySend(c, msg)
	}
}

func (h *Hub) sendToTeam(name string, msg any) {
	if e, ok := h.teams[name]; ok {
		h.trySend(e.client, msg)
	}
}

func (h *Hub) sendToAdmin(msg any) {
	h.trySend(h.admin, msg)
}

func (h *Hub) broadcastTeamList() {
	names := make([]string, 0, len(h.teams))
	for name := range h.teams {
		names = append(names, name)
	}
	slices.Sort(names)

	h.broadcast(TeamsMessage{Type: "teams", Teams: names, Count: len(names)})
}

func (h *Hub) broadcastTournamentState() {
	h.broadcast(h.snapshot())
}

// snapshot exposes the tournament plus the public subset of round state;
// eligibility sets and timers stay server-side.
func (h *Hub) snapshot() TournamentStateMessage {
	return TournamentStateMessage{
		Type:       "tournament-state",
		Tournament: h.tournament,
		GameState: GameStateView{
			Genre:           h.game.Genre,
			BuzzedTeam:      h.game.BuzzedTeam,
			CurrentAnswerer: h.game.CurrentAnswerer,
			Phase:           h.tournament.Phase,
		},
	}
}

func (h *Hub) handleDisconnect(c *Client) {
	if h.clients[c] {
		delete(h.clients, c)
		close(c.send)
	}

	if h.admin == c {
		h.admin = nil
	}

	if c.name != "" {
		h.detachTeam(c.name, c)
	}
}

// detachTeam marks a team's connection as gone and schedules the deferred
// purge. No-op unless the entry still points at this client.
func (h *Hub) detachTeam(name string, c *Client) {
	e, ok := h.teams[name]
	if !ok || e.client != c {
		return
	}

	e.client = nil
	e.disconnectedAt = time.Now()

	if e.purge != nil {
		e.purge.Stop()
	}
	e.purge = time.AfterFunc(h.cfg.teamTimeout, func() {
		h.inbox <- purgeTeam{name: name}
	})

	logf(h.cfg, "GAMES: Team %q disconnected, purge in %s", name, h.cfg.teamTimeout)
}

// handlePurgeTeam fires after the grace window. The timer is invalidated
// on rejoin, but the state is re-checked anyway in case a stale timer
// slipped through a disconnect/rejoin cycle.
func (h *Hub) handlePurgeTeam(name string) {
	e, ok := h.teams[name]
	if !ok || e.client != nil || e.disconnectedAt.IsZero() {
		return
	}
	if time.Since(e.disconnectedAt) < h.cfg.teamTimeout {
		return
	}

	delete(h.teams, name)
	logf(h.cfg, "GAMES: Team %q purged after grace window", name)

	h.broadcastTeamList()
}

func (h *Hub) handleAdminJoin(c *Client) {
	c.admin = true
	h.admin = c

	names := make([]string, 0, len(h.teams))
	for name := range h.teams {
		names = append(names, name)
	}
	slices.Sort(names)

	h.trySend(c, TeamsMessage{Type: "teams", Teams: names, Count: len(names)})
	h.trySend(c, GenresMessage{Type: "genres", Genres: genres})
	h.broadcastTournamentState()
}

func (h *Hub) handleTeamJoin(c *Client, name string) {
	if name == "" {
		return
	}

	// A client switching names releases its old seat first.
	if c.name != "" && c.name != name {
		h.detachTeam(c.name, c)
	}

	e, ok := h.teams[name]
	if ok {
		// Name collision: the newest connection wins the seat.
		if e.client != nil && e.client != c {
			old := e.client
			old.name = ""
			if h.clients[old] {
				delete(h.clients, old)
				close(old.send)
			}
		}
		e.client = c
		e.disconnectedAt = time.Time{}
		if e.purge != nil {
			e.purge.Stop()
			e.purge = nil
		}
	} else {
		h.teams[name] = &teamEntry{client: c, joinedAt: time.Now()}
		logf(h.cfg, "GAMES: Team %q joined", name)
	}

	c.name = name

	h.trySend(c, JoinedMessage{Type: "joined", Name: name})
	h.broadcastTeamList()
	h.broadcastTournamentState()
}

func (h *Hub) handleStartTournament(c *Client) {
	if !h.isAdmin(c) || len(h.teams) != 8 {
		return
	}

	names := make([]string, 0, len(h.teams))
	for name := range h.teams {
		names = append(names, name)
	}

	if !h.tournament.start(names) {
		return
	}
	h.game = GameState{}

	logf(h.cfg, "GAMES: Tournament started with %d teams", len(names))

	h.broadcastTournamentState()
}

func (h *Hub) handleResetTournament(c *Client) {
	if !h.isAdmin(c) {
		return
	}

	h.tournament = newTournament()
	h.game = GameState{}

	logf(h.cfg, "GAMES: Tournament reset")

	h.broadcastTournamentState()
}

func (h *Hub) handleSelectMatch(c *Client, ref MatchRef) {
	if !h.isAdmin(c) {
		return
	}

	m := h.tournament.match(ref)
	if m == nil || m.resolved() || !m.populated() {
		return
	}

	if prev := h.tournament.currentMatch(); prev != nil {
		prev.Active = false
	}

	h.tournament.CurrentMatch = &ref
	h.tournament.Phase = PhaseWheel
	h.game = GameState{}
	m.Active = true

	h.broadcastTournamentState()
}

func (h *Hub) handleSpinWheel(c *Client) {
	if !h.isAdmin(c) || h.tournament.Phase != PhaseWheel {
		return
	}

	genre := genres[randomIndex(len(genres))]
	h.game.Genre = genre

	h.broadcast(WheelResultMessage{Type: "wheel-result", Genre: genre})
}

func (h *Hub) handleStartRound(c *Client) {
	if !h.isAdmin(c) {
		return
	}

	m := h.tournament.currentMatch()
	if m == nil {
		return
	}

	h.tournament.Phase = PhaseBuzzer
	h.game.BuzzedTeam = ""
	h.game.BuzzTime = 0
	h.game.CurrentAnswerer = ""
	h.game.CanBuzz = []string{m.Team1, m.Team2}
	h.game.StartTime = time.Now()

	h.sendToTeam(m.Team1, SimpleMessage{Type: "show-button"})
	h.sendToTeam(m.Team2, SimpleMessage{Type: "show-button"})
	h.sendToAdmin(SimpleMessage{Type: "round-started"})

	h.broadcastTournamentState()
}

func (h *Hub) handleBuzz(c *Client) {
	if c.name == "" || h.tournament.Phase != PhaseBuzzer {
		return
	}
	if !h.game.canTeamBuzz(c.name) || h.game.BuzzedTeam != "" {
		return
	}

	h.game.BuzzedTeam = c.name
	h.game.BuzzTime = time.Since(h.game.StartTime).Milliseconds()
	h.game.CurrentAnswerer = c.name
	h.tournament.Phase = PhaseAnswering

	other := h.tournament.otherTeam(c.name)

	h.sendToTeam(c.name, YouAnswerMessage{Type: "you-answer", Time: h.game.BuzzTime})
	h.sendToTeam(other, OpponentAnswersMessage{Type: "opponent-answers", Opponent: c.name})
	h.sendToAdmin(BuzzedMessage{Type: "buzzed", Team: c.name, Time: h.game.BuzzTime})

	h.broadcastTournamentState()
}

func (h *Hub) handleCorrectAnswer(c *Client) {
	if !h.isAdmin(c) || h.tournament.Phase != PhaseAnswering {
		return
	}

	m := h.tournament.currentMatch()
	if m == nil {
		return
	}

	winner := h.game.CurrentAnswerer
	loser := h.tournament.otherTeam(winner)

	if h.tournament.CurrentMatch.Round == RoundFinal {
		h.scoreFinalPoint(winner, loser)
	} else {
		m.Winner = winner
		m.Active = false
		h.tournament.Phase = PhaseWaiting
		h.tournament.CurrentMatch = nil
		h.tournament.advanceWinners()
		h.game = GameState{}

		logf(h.cfg, "GAMES: Team %q won their match against %q", winner, loser)

		h.sendToTeam(winner, SimpleMessage{Type: "you-won-match"})
		h.sendToTeam(loser, MatchWinnerMessage{Type: "you-lost-match", Winner: winner, IsFinal: false})
		h.sendToAdmin(MatchWinnerMessage{Type: "match-winner", Winner: winner, IsFinal: false})
	}

	h.broadcastTournamentState()
}

// scoreFinalPoint increments the scorer's tally; the final resolves at
// two points, otherwise the round resets for another song.
func (h *Hub) scoreFinalPoint(winner, loser string) {
	final := &h.tournament.Bracket.Final

	if winner == final.Team1 {
		final.Score1++
	} else {
		final.Score2++
	}

	if final.Score1 >= 2 || final.Score2 >= 2 {
		final.Winner = winner
		final.Active = false
		h.tournament.Phase = PhaseWaiting
		h.tournament.CurrentMatch = nil
		h.game = GameState{}

		logf(h.cfg, "GAMES: Team %q won the tournament", winner)

		h.sendToTeam(winner, SimpleMessage{Type: "you-won-tournament"})
		h.sendToTeam(loser, MatchWinnerMessage{Type: "you-lost-match", Winner: winner, IsFinal: true})
		h.sendToAdmin(MatchWinnerMessage{Type: "match-winner", Winner: winner, IsFinal: true})

		return
	}

	h.tournament.Phase = PhaseWheel
	h.game = GameState{}

	h.sendToTeam(winner, ScoreMessage{Type: "correct-next-round", Score1: final.Score1, Score2: final.Score2})
	h.sendToTeam(loser, ScoreMessage{Type: "opponent-correct-next-round", Score1: final.Score1, Score2: final.Score2})
	h.sendToAdmin(FinalPointMessage{Type: "final-point", Team: winner, Score1: final.Score1, Score2: final.Score2})
}

func (h *Hub) handleWrongAnswer(c *Client) {
	if !h.isAdmin(c) || h.tournament.Phase != PhaseAnswering {
		return
	}

	m := h.tournament.currentMatch()
	if m == nil {
		return
	}

	wrong := h.game.CurrentAnswerer
	other := h.tournament.otherTeam(wrong)

	if !h.game.canTeamBuzz(other) {
		// Both teams have missed; wash the round and spin again.
		h.tournament.Phase = PhaseWheel
		h.game = GameState{}

		h.sendToTeam(m.Team1, SimpleMessage{Type: "both-wrong-new-song"})
		h.sendToTeam(m.Team2, SimpleMessage{Type: "both-wrong-new-song"})
		h.sendToAdmin(SimpleMessage{Type: "both-wrong"})
	} else {
		h.game.dropFromBuzz(wrong)
		h.game.CurrentAnswerer = other

		h.sendToTeam(wrong, SimpleMessage{Type: "you-wrong-wait"})
		h.sendToTeam(other, SimpleMessage{Type: "your-turn-answer"})
		h.sendToAdmin(WrongOtherAnswersMessage{Type: "wrong-other-answers", Team: other})
	}

	h.broadcastTournamentState()
}

func (h *Hub) handleKickTeam(c *Client, name string) {
	if !h.isAdmin(c) {
		return
	}

	e, ok := h.teams[name]
	if !ok {
		return
	}

	if e.purge != nil {
		e.purge.Stop()
	}

	if e.client != nil {
		h.trySend(e.client, SimpleMessage{Type: "kicked"})
		e.client.name = ""
		if h.clients[e.client] {
			delete(h.clients, e.client)
			close(e.client.send)
		}
	}

	delete(h.teams, name)
	logf(h.cfg, "GAMES: Team %q kicked", name)

	h.broadcastTeamList()
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func serveWS(h *Hub) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Println("upgrade error:", err)
			return
		}

		client := &Client{
			conn: conn,
			send: make(chan any, 8),
		}

		h.inbox <- connect{client: client}

		go client.writePump()
		client.readPump(h)
	}
}

func (c *Client) readPump(h *Hub) {
	defer func() {
		h.inbox <- disconnect{client: c}
		_ = c.conn.Close()
	}()

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		if m, ok := toHubMsg(c, msg); ok {
			h.inbox <- m
		}
		// unknown types ignored
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// qrHandler generates a PNG QR code for the player join URL using go-qrcode.
func qrHandler(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	// Derive scheme (respecting TLS and X-Forwarded-Proto if present).
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	// We are at $prefix/qr; strip the trailing "/qr" to get the join URL.
	path := strings.TrimSuffix(r.URL.Path, "/qr")

	url := scheme + "://" + r.Host + path + "/"

	const qrSize = 320 // mobile-friendly size
	png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
	if err != nil {
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

// registerBuzzerGame sets up routes so that:
//   - $prefix/           → player page
//   - $prefix/admin      → admin page
//   - $prefix/assets/*   → shared css/js
//   - $prefix/ws         → websocket, shared by teams and admin
//   - $prefix/qr         → PNG QR code for the join URL
func registerBuzzerGame(cfg *Config, mux *httprouter.Router, errs chan error) *Hub {
	hub := newHub(cfg)
	go hub.run()

	mux.GET(cfg.prefix+"/", servePage(cfg, "assets/index.html", errs))
	mux.GET(cfg.prefix+"/admin", servePage(cfg, "assets/admin.html", errs))
	mux.GET(cfg.prefix+"/assets/*asset", serveAssets(cfg, errs))
	mux.GET(cfg.prefix+"/ws", serveWS(hub))
	mux.GET(cfg.prefix+"/qr", qrHandler)

	return hub
}
