// Package feedback suspends a running test case until an operator answers.
//
// A Requester hands each Request to a Channel, which owns delivery: a
// terminal prompt, the state tree (for web or MCP operators) or a script.
// Verdicts come back as an explicit Result whose Err method maps onto the
// error taxonomy; a retry is signalled with domain.ErrRetryRequested and is
// never a test failure.
//
// A typical retry loop in a test body:
//
//	for {
//		res, err := c.Feedback("Is the LED green?", "", feedback.PassFailRetry)
//		if err != nil {
//			return err
//		}
//		if res.Outcome != feedback.Retry {
//			return res.Err()
//		}
//	}
package feedback
