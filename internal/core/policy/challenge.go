package policy

// RequiresChallenge reports whether a CAPTCHA must accompany the next
// submission. Escalation starts at ChallengeLow failures and stops at
// ChallengeHigh, where lockout takes over.
func (p Lockout) RequiresChallenge(failedAttempts int) bool {
	return failedAttempts >= p.ChallengeLow && failedAttempts < p.ChallengeHigh
}
