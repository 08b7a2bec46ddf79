/*
Package criteria evaluates named pass/fail predicates against measured values.

A predicate is a short expression with a single free variable, value:

	value < 5
	value == 17
	-3 <= value <= 3
	value % 2 == 0 and value != 0

Predicates are compiled by a small whitelisted parser. Only arithmetic,
comparison and boolean operators are accepted (see DefaultOperators and
WithOperators); any other name, call or operator is rejected with a
*domain.PredicateError when the criterion is declared.

An evaluation Block guarantees that every criterion evaluated inside it is
recorded before an aggregate *domain.TestFailure naming the failing
criteria is returned:

	err := ev.EvaluateBlock(func() error {
		ev.Evaluate("tx_power", measured)
		ev.Evaluate("evm", evm)
		return nil
	})
*/
package criteria
