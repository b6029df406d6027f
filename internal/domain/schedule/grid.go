package schedule

// InLunch reports whether a block starting at c falls in the lunch window.
func InLunch(c Clock) bool {
	return c >= LunchStart && c < LunchEnd
}

// BuildBlocks enumerates bookable block starts between open and closing.
// The last start leaves room for one full block before closing.
func BuildBlocks(open, closing Clock) []Clock {
	if open >= closing {
		return []Clock{}
	}
	blocks := make([]Clock, 0, (int(closing-open))/BlockMinutes)
	for b := open; b.Add(1) <= closing; b = b.Add(1) {
		if InLunch(b) {
			continue
		}
		blocks = append(blocks, b)
	}
	return blocks
}

// Run returns the consecutive block starts a booking of n blocks occupies.
func Run(start Clock, n int) []Clock {
	if n <= 0 {
		return nil
	}
	run := make([]Clock, n)
	for i := range run {
		run[i] = start.Add(i)
	}
	return run
}
