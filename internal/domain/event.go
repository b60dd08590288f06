package domain

const (
	EventNameScoreSubmitted  = "score.submitted"
	EventNameSessionFinished = "multiplayer.session.finished"
)

// EventScoreSubmitted is published after a single-player score is persisted.
type EventScoreSubmitted struct {
	Entry ScoreEntry
}

func (EventScoreSubmitted) Name() string { return EventNameScoreSubmitted }

// EventSessionFinished is published when the last player of a multiplayer
// session reports a score and winners are computed.
type EventSessionFinished struct {
	Session MultiplayerSession
}

func (EventSessionFinished) Name() string { return EventNameSessionFinished }
