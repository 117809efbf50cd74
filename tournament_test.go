package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func eightTeams() []string {
	return []string{"A", "B", "C", "D", "E", "F", "G", "H"}
}

func TestStartRequiresExactlyEightTeams(t *testing.T) {
	cases := []struct {
		name  string
		teams []string
		want  bool
	}{
		{name: "seven teams", teams: eightTeams()[:7], want: false},
		{name: "eight teams", teams: eightTeams(), want: true},
		{name: "nine teams", teams: append(eightTeams(), "I"), want: false},
		{name: "no teams", teams: nil, want: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tournament := newTournament()
			got := tournament.start(tc.teams)

			require.Equal(t, tc.want, got)

			if !tc.want {
				// A failed start must leave the bracket untouched.
				assert.Equal(t, newTournament(), tournament)
			}
		})
	}
}

func TestStartSeatsEveryTeamExactlyOnce(t *testing.T) {
	tournament := newTournament()
	require.True(t, tournament.start(eightTeams()))

	seen := make(map[string]int)
	for _, m := range tournament.Bracket.Quarterfinals {
		require.NotEmpty(t, m.Team1)
		require.NotEmpty(t, m.Team2)
		seen[m.Team1]++
		seen[m.Team2]++

		assert.Empty(t, m.Winner)
		assert.False(t, m.Active)
	}

	require.Len(t, seen, 8)
	for _, name := range eightTeams() {
		assert.Equal(t, 1, seen[name], "team %q should fill exactly one slot", name)
	}

	assert.True(t, tournament.Started)
	assert.Equal(t, PhaseWaiting, tournament.Phase)
	assert.Nil(t, tournament.CurrentMatch)
	assert.Equal(t, [2]Match{}, tournament.Bracket.Semifinals)
	assert.Equal(t, FinalMatch{}, tournament.Bracket.Final)
}

func TestStartClearsPreviousResults(t *testing.T) {
	tournament := newTournament()
	require.True(t, tournament.start(eightTeams()))

	tournament.Bracket.Quarterfinals[0].Winner = tournament.Bracket.Quarterfinals[0].Team1
	tournament.Bracket.Final.Score1 = 1

	require.True(t, tournament.start(eightTeams()))

	for _, m := range tournament.Bracket.Quarterfinals {
		assert.Empty(t, m.Winner)
	}
	assert.Zero(t, tournament.Bracket.Final.Score1)
}

func TestAdvanceWinners(t *testing.T) {
	tournament := newTournament()
	require.True(t, tournament.start(eightTeams()))

	qf := &tournament.Bracket.Quarterfinals
	sf := &tournament.Bracket.Semifinals

	// One quarterfinal winner is not enough.
	qf[0].Winner = qf[0].Team1
	tournament.advanceWinners()
	assert.Empty(t, sf[0].Team1)
	assert.Empty(t, sf[0].Team2)

	// Both feeders resolved populates the semifinal.
	qf[1].Winner = qf[1].Team2
	tournament.advanceWinners()
	assert.Equal(t, qf[0].Winner, sf[0].Team1)
	assert.Equal(t, qf[1].Winner, sf[0].Team2)

	// The other semifinal stays empty until its feeders resolve.
	assert.Empty(t, sf[1].Team1)

	qf[2].Winner = qf[2].Team1
	qf[3].Winner = qf[3].Team1
	tournament.advanceWinners()
	assert.Equal(t, qf[2].Winner, sf[1].Team1)
	assert.Equal(t, qf[3].Winner, sf[1].Team2)

	// No final slots until both semifinals resolve.
	assert.Empty(t, tournament.Bracket.Final.Team1)

	sf[0].Winner = sf[0].Team1
	sf[1].Winner = sf[1].Team2
	tournament.advanceWinners()
	assert.Equal(t, sf[0].Winner, tournament.Bracket.Final.Team1)
	assert.Equal(t, sf[1].Winner, tournament.Bracket.Final.Team2)

	// Idempotent under repeated calls.
	before := tournament.Bracket
	tournament.advanceWinners()
	assert.Equal(t, before, tournament.Bracket)
}

func TestMatchResolvesReferences(t *testing.T) {
	tournament := newTournament()
	require.True(t, tournament.start(eightTeams()))

	cases := []struct {
		name string
		ref  MatchRef
		want bool
	}{
		{name: "first quarterfinal", ref: MatchRef{Round: RoundQuarterfinals, Index: 0}, want: true},
		{name: "last quarterfinal", ref: MatchRef{Round: RoundQuarterfinals, Index: 3}, want: true},
		{name: "quarterfinal out of range", ref: MatchRef{Round: RoundQuarterfinals, Index: 4}, want: false},
		{name: "negative index", ref: MatchRef{Round: RoundSemifinals, Index: -1}, want: false},
		{name: "final ignores index", ref: MatchRef{Round: RoundFinal, Index: 7}, want: true},
		{name: "unknown round", ref: MatchRef{Round: Round("thirdplace"), Index: 0}, want: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := tournament.match(tc.ref)
			if tc.want {
				assert.NotNil(t, got)
			} else {
				assert.Nil(t, got)
			}
		})
	}
}

func TestOtherTeam(t *testing.T) {
	tournament := newTournament()
	require.True(t, tournament.start(eightTeams()))

	ref := MatchRef{Round: RoundQuarterfinals, Index: 2}
	tournament.CurrentMatch = &ref
	m := tournament.currentMatch()
	require.NotNil(t, m)

	assert.Equal(t, m.Team2, tournament.otherTeam(m.Team1))
	assert.Equal(t, m.Team1, tournament.otherTeam(m.Team2))
	assert.Empty(t, tournament.otherTeam("nobody"))

	tournament.CurrentMatch = nil
	assert.Empty(t, tournament.otherTeam(m.Team1))
}

func TestShuffleNamesIsAPermutation(t *testing.T) {
	names := eightTeams()
	shuffled := shuffleNames(names)

	require.Len(t, shuffled, len(names))
	assert.ElementsMatch(t, names, shuffled)

	// The input slice must not be reordered in place.
	assert.Equal(t, eightTeams(), names)
}

func TestGameStateEligibility(t *testing.T) {
	g := GameState{CanBuzz: []string{"A", "B"}}

	assert.True(t, g.canTeamBuzz("A"))
	assert.True(t, g.canTeamBuzz("B"))
	assert.False(t, g.canTeamBuzz("C"))

	g.dropFromBuzz("A")
	assert.False(t, g.canTeamBuzz("A"))
	assert.True(t, g.canTeamBuzz("B"))
}
