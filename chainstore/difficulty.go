package chainstore

import "math"

// CalculateHashDifficulty returns the minimum hash_difficulty required
// for a block at height. Starting from MinimumHashDifficulty, every
// DifficultyAdjustmentSpan blocks the required difficulty rises by one
// if the actual average block time over the span was faster than
// TargetTimePerBlock, or falls by one (never below the minimum) if it
// was slower. This mirrors calculate_hash_difficulty's span-based ±1
// adjustment rather than a continuous retarget.
func (s *Store) CalculateHashDifficulty(height uint64) (int, error) {
	span := s.params.DifficultyAdjustmentSpan
	min := s.params.MinimumHashDifficulty
	if span == 0 || height < span {
		return min, nil
	}

	windowStart := (height / span) * span
	if windowStart == 0 {
		return min, nil
	}

	newestHeight := windowStart - 1
	oldestHeight := windowStart - span
	newest, err := s.BlockByHeight(primaryBranch, newestHeight)
	if err != nil {
		return min, nil
	}
	oldest, err := s.BlockByHeight(primaryBranch, oldestHeight)
	if err != nil {
		return min, nil
	}

	elapsed := newest.Header.Timestamp - oldest.Header.Timestamp
	targetElapsed := int64(s.params.TargetTimePerBlock.Seconds()) * int64(span)

	prevDifficulty := min
	if windowStart >= span {
		prevDifficulty, err = s.CalculateHashDifficulty(windowStart - 1)
		if err != nil {
			return min, err
		}
	}

	switch {
	case elapsed > 0 && elapsed < targetElapsed:
		return prevDifficulty + 1, nil
	case elapsed > targetElapsed && prevDifficulty > min:
		return prevDifficulty - 1, nil
	default:
		return prevDifficulty, nil
	}
}

// GetReward returns the block subsidy at height, in glim:
// floor((InitialCoinsPerBlock / 2^floor(height/HalvingFrequency)) *
// 10^SignificantDigits).
func (s *Store) GetReward(height uint64) int64 {
	halvings := height / s.params.HalvingFrequency
	scale := math.Pow10(int(s.params.SignificantDigits))
	reward := s.params.InitialCoinsPerBlock * scale
	if halvings >= 64 {
		return 0
	}
	reward = math.Floor(reward / math.Pow(2, float64(halvings)))
	return int64(reward)
}
