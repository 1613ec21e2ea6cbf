package db

import (
	"context"

	"github.com/jacem/otpgate/internal/otp/entity"
)

// GetFlowExecutions loads the execution steps of the realm's authentication
// flow together with their role conditions. An empty result is not an error.
func (s *DB) GetFlowExecutions(ctx context.Context, realm, flowAlias string) (execs []entity.FlowExecution, err error) {
	ctx, span := s.startSpan(ctx, "GetFlowExecutions")
	defer func() { s.endSpan(span, err) }()

	query := `
		SELECT id, realm, flow_alias, requirement, condition_role, condition_negate
		FROM otp_flow_executions
		WHERE realm = $1 AND flow_alias = $2
		ORDER BY id`
	rows, err := s.conn.Query(ctx, query, realm, flowAlias)
	if err != nil {
		return nil, s.mapError(err)
	}
	defer rows.Close()

	for rows.Next() {
		var e entity.FlowExecution
		if err = rows.Scan(&e.ID, &e.Realm, &e.FlowAlias, &e.Requirement, &e.ConditionRole, &e.ConditionNegate); err != nil {
			return nil, s.mapError(err)
		}
		execs = append(execs, e)
	}
	if err = rows.Err(); err != nil {
		return nil, s.mapError(err)
	}

	return execs, nil
}
