package game

import "math/rand/v2"

// EliminateChoices removes removeCount incorrect answers at random and
// returns the removed answers plus the reshuffled remaining choices (the
// correct answer always survives).
func EliminateChoices(correct string, incorrect []string, removeCount int) (removed, remaining []string) {
	if removeCount > len(incorrect) {
		removeCount = len(incorrect)
	}

	wrongs := make([]string, len(incorrect))
	copy(wrongs, incorrect)
	rand.Shuffle(len(wrongs), func(i, j int) {
		wrongs[i], wrongs[j] = wrongs[j], wrongs[i]
	})

	removed = wrongs[:removeCount]

	remaining = append([]string{correct}, wrongs[removeCount:]...)
	rand.Shuffle(len(remaining), func(i, j int) {
		remaining[i], remaining[j] = remaining[j], remaining[i]
	})

	return removed, remaining
}
