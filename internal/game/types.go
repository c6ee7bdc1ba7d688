package game

import "context"

// State is the engine's canonical state value.
type State string

const (
	StateSettingUp                    State = "settingUp"
	StateDealing                      State = "dealing"
	StateInitialViewing               State = "initialViewing"
	StateSnapSuspension               State = "snapSuspension"
	StateResolvingSnap                State = "resolvingSnap"
	StateAwaitingSnapResolutionChoice State = "awaitingSnapResolutionChoice"
	StateStartingTurn                 State = "startingTurn"
	StateAwaitingDeckSwapChoice       State = "awaitingDeckSwapChoice"
	StateFinishingDeckSwap            State = "finishingDeckSwap"
	StateAwaitingPileSwapChoice       State = "awaitingPileSwapChoice"
	StateFinishingPileSwap            State = "finishingPileSwap"
	StateStartingSpecialPower         State = "startingSpecialPower"
	StateAwaitingMateLookChoice       State = "awaitingMateLookChoice"
	StatePreviewingCard               State = "previewingCard"
	StateAwaitingMineLookChoice       State = "awaitingMineLookChoice"
	StateAwaitingQueenLookChoice      State = "awaitingQueenLookChoice"
	StateAwaitingQueenSwapOwnChoice   State = "awaitingQueenSwapOwnChoice"
	StateAwaitingQueenSwapOtherChoice State = "awaitingQueenSwapOtherChoice"
	StateAwaitingBlindSwapOwnChoice   State = "awaitingBlindSwapOwnChoice"
	StateAwaitingBlindSwapOtherChoice State = "awaitingBlindSwapOtherChoice"
	StateGameOver                     State = "gameOver"
	StateExit                         State = "exit"
)

// Action is the kind of an inbound player update.
type Action string

const (
	ActionSetName        Action = "setName"
	ActionIndicateReady  Action = "indicateReady"
	ActionLeave          Action = "leave"
	ActionSnap           Action = "snap"
	ActionTapCard        Action = "tapCard"
	ActionPass           Action = "pass"
	ActionCambio         Action = "cambio"
	ActionRequestRematch Action = "requestRematch"
)

// Update is a validated inbound action. Position is present only for tapCard.
type Update struct {
	GameID   string    `json:"gameId"`
	Action   Action    `json:"action"`
	Name     string    `json:"name,omitempty"`
	Position *Position `json:"position,omitempty"`
}

// Options are the per-game settings chosen at creation time.
type Options struct {
	Explosions   bool `json:"explosions"`
	SoundEffects bool `json:"soundEffects"`
	SnapOthers   bool `json:"snapOthers"`
	RiskyFives   bool `json:"riskyFives"`
}

// PlayerData is the engine's record for one player, keyed by session id.
// TablePosition is assigned at deal time and fixed for the hand.
type PlayerData struct {
	Connected           bool   `json:"connected"`
	Name                string `json:"name"`
	Ready               bool   `json:"ready"`
	TablePosition       int    `json:"tablePosition"`
	HasRequestedRematch bool   `json:"hasRequestedRematch"`
	HasTakenFinalTurn   bool   `json:"hasTakenFinalTurn"`
}

// FlatPlayerData is PlayerData plus its key, for the client-state payload.
type FlatPlayerData struct {
	SessionID string `json:"sessionId"`
	PlayerData
}

// EventType distinguishes narrative text from named graphic effects.
type EventType string

const (
	EventText    EventType = "text"
	EventGraphic EventType = "graphic"
)

// Event is a transient narrative or graphic effect. Events with
// RecipientSessionIDs set are delivered only to those sessions; others go to
// everyone. The queue is drained on every broadcast.
type Event struct {
	Type                EventType `json:"type"`
	Message             string    `json:"message,omitempty"`
	Name                string    `json:"name,omitempty"`
	RecipientSessionIDs []string  `json:"recipientSessionIds,omitempty"`
}

// SendStateToSession delivers one per-recipient client state. Supplied by the
// transport layer.
type SendStateToSession func(sessionID string, state ClientState)

// ActionRecord is one applied update, published to the action history.
type ActionRecord struct {
	GameID      string         `json:"gameId"`
	ActionIndex int            `json:"actionIndex"`
	SessionID   string         `json:"sessionId,omitempty"`
	Action      string         `json:"action"`
	Detail      map[string]any `json:"detail,omitempty"`
	Timestamp   int64          `json:"timestamp"`
}

// ActionRecorder publishes action records. Implementations must be safe for
// concurrent use; a nil recorder disables history.
type ActionRecorder interface {
	RecordAction(ctx context.Context, rec ActionRecord) error
}

// FinalResult is the end-of-game summary handed to the result store.
type FinalResult struct {
	Winner string        `json:"winner"`
	Scores []PlayerScore `json:"scores"`
}

// ResultStore persists final game results. A nil store disables persistence.
type ResultStore interface {
	SaveResult(ctx context.Context, gameID string, result FinalResult) error
}
