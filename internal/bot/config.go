package bot

import "time"

// Config represents the configuration for the bot
type Config struct {
	Token string `koanf:"token"`
	// FeedSize is the number of items sent per /feed
	FeedSize int `koanf:"feed_size"`
	// PollTimeout is the long-polling timeout for updates
	PollTimeout time.Duration `koanf:"poll_timeout"`
	// ReminderCards is the most due cards counted in a reminder
	ReminderCards int `koanf:"reminder_cards"`
}

// DefaultConfig returns the default bot configuration
func DefaultConfig() Config {
	return Config{
		FeedSize:      5,
		PollTimeout:   60 * time.Second,
		ReminderCards: 20,
	}
}
