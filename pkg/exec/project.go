package exec

import "edgesql/pkg/execctx"

// Project evaluates Exprs against each child row, producing a row whose
// columns are named by OutputNames.
type Project struct {
	Child       Operator
	Exprs       []Expr
	OutputNames []string
}

// NewProject wraps child, replacing its rows with the results of exprs.
func NewProject(child Operator, exprs []Expr, outputNames []string) *Project {
	return &Project{Child: child, Exprs: exprs, OutputNames: outputNames}
}

func (p *Project) Open(ctx *execctx.Context) error {
	return p.Child.Open(ctx)
}

func (p *Project) Next(ctx *execctx.Context) (Row, bool, error) {
	if v := ctx.CheckBudget(); v != execctx.None {
		return nil, false, v.Err()
	}
	row, ok, err := p.Child.Next(ctx)
	if err != nil || !ok {
		return nil, ok, err
	}

	out := make(Row, len(p.Exprs))
	for i, e := range p.Exprs {
		v, err := e.Eval(row)
		if err != nil {
			return nil, false, err
		}
		out[i] = v
	}
	ctx.RecordInstructions(uint64(len(p.Exprs)))
	return out, true, nil
}

func (p *Project) Close() error { return p.Child.Close() }

func (p *Project) ColumnNames() []string { return p.OutputNames }
