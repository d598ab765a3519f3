package operations

import "github.com/zjrosen/qcircuit/internal/circuit"

func init() {
	circuit.RegisterApply(nil, SequentialClass, applySequential)
	circuit.RegisterApply(nil, RemappedClass, applyRemapped)
	circuit.RegisterApply(nil, IdentityClass, applyIdentity)
}
