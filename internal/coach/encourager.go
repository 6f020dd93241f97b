package coach

import (
	"context"
	"math/rand"
	"time"
)

// Encouragements are the periodic pep-talk lines
var Encouragements = []string{
	"Remember, every great algorithm started with a single line of code!",
	"Your debugging skills are getting stronger with each challenge!",
	"Think like a superhero - break down complex problems into smaller ones!",
	"Data structures are your web-shooters - master them and you'll swing through any problem!",
	"Every bug you fix makes you a better programmer!",
	"Don't give up! Even Spider-Man had to learn to swing!",
	"Your code is like a web - make it strong and efficient!",
	"Time complexity matters, hero! Make your algorithms fast!",
	"Recursion is like calling for backup - use it wisely!",
	"Hash maps are your best friends for fast lookups!",
}

// Encourager emits a random encouragement on a fixed interval
type Encourager struct {
	interval time.Duration
	messages []string
	rng      *rand.Rand
}

// NewEncourager creates an encourager using the built-in messages
func NewEncourager(interval time.Duration) *Encourager {
	return &Encourager{
		interval: interval,
		messages: Encouragements,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Run calls emit every interval until ctx is done. A non-positive interval
// returns immediately.
func (e *Encourager) Run(ctx context.Context, emit func(string)) {
	if e.interval <= 0 || len(e.messages) == 0 {
		return
	}

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			emit(e.messages[e.rng.Intn(len(e.messages))])
		}
	}
}
