package step

import (
	"time"

	"github.com/taskolib/taskolib/scripthost"
	"github.com/taskolib/taskolib/seqctx"
)

// Execute runs this step's script against ctx synchronously, for standalone
// library use outside of an Executor/Sequence. It sets the running flag for
// the duration of the call and stamps LastExecuted on completion. The
// returned bool is the header truthiness result for if/elseif/while steps
// and is meaningless for action/try/catch steps.
func (s *Step) Execute(ctx *seqctx.Context) (bool, error) {
	s.SetRunning(true)
	defer s.SetRunning(false)

	host := scripthost.New(nil)
	outcome, err := host.RunStep(scripthost.RunParams{
		Script:     s.script,
		VarNames:   s.VariableNames(),
		Timeout:    s.timeout,
		HeaderMode: s.typ.HasHeaderScript(),
		Ctx:        ctx,
	})
	s.SetLastExecuted(time.Now().UTC())
	if err != nil {
		return false, err
	}
	return outcome.HeaderTruth, nil
}
