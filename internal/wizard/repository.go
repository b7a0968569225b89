package wizard

import "context"

// Repository persists wizard state keyed by chat ID so the bot process
// stays stateless between updates.
type Repository interface {
	// Load returns the current state, or (nil, nil) when the chat has no
	// active flow or the stored one has expired.
	Load(ctx context.Context, chatID int64) (*State, error)

	// Save upserts the row, replacing step and data wholesale.
	Save(ctx context.Context, state *State) error

	// Clear deletes the row. Clearing an absent row is not an error, so a
	// crash between a final insert and the clear stays harmless on retry.
	Clear(ctx context.Context, chatID int64) error
}
