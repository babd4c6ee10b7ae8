package segmentation

import (
	"fmt"
	"strings"
)

// QueryBuilder builds SQL queries over audience_members from compiled queries
type QueryBuilder struct {
	args       []interface{}
	argCounter int
	sellerID   string
}

// NewQueryBuilder creates a new QueryBuilder
func NewQueryBuilder() *QueryBuilder {
	return &QueryBuilder{
		args:       make([]interface{}, 0),
		argCounter: 1,
	}
}

// SetSellerID scopes every query to one seller
func (qb *QueryBuilder) SetSellerID(sellerID string) *QueryBuilder {
	qb.sellerID = sellerID
	return qb
}

// nextArg returns the next argument placeholder
func (qb *QueryBuilder) nextArg(value interface{}) string {
	qb.args = append(qb.args, value)
	placeholder := fmt.Sprintf("$%d", qb.argCounter)
	qb.argCounter++
	return placeholder
}

func (qb *QueryBuilder) reset() {
	qb.args = make([]interface{}, 0)
	qb.argCounter = 1
}

// BuildCountQuery counts matching members. A positive limit caps the count.
func (qb *QueryBuilder) BuildCountQuery(q Query, limit int) (string, []interface{}) {
	qb.reset()
	where := qb.buildWhere(q)
	if limit > 0 {
		query := fmt.Sprintf(
			"SELECT COUNT(*) FROM (SELECT 1 FROM audience_members s WHERE %s LIMIT %s) capped",
			where, qb.nextArg(limit))
		return query, qb.args
	}
	return "SELECT COUNT(*) FROM audience_members s WHERE " + where, qb.args
}

// BuildEmailQuery selects the emails of up to limit matching members in id order.
func (qb *QueryBuilder) BuildEmailQuery(q Query, limit int) (string, []interface{}) {
	qb.reset()
	where := qb.buildWhere(q)
	query := "SELECT s.email FROM audience_members s WHERE " + where + " ORDER BY s.id"
	if limit > 0 {
		query += " LIMIT " + qb.nextArg(limit)
	}
	return query, qb.args
}

// BuildIDQuery selects the ids of all matching members.
func (qb *QueryBuilder) BuildIDQuery(q Query) (string, []interface{}) {
	qb.reset()
	where := qb.buildWhere(q)
	return "SELECT s.id FROM audience_members s WHERE " + where + " ORDER BY s.id", qb.args
}

func (qb *QueryBuilder) buildWhere(q Query) string {
	var whereParts []string
	if qb.sellerID != "" {
		whereParts = append(whereParts, "s.seller_id = "+qb.nextArg(qb.sellerID))
	}
	whereParts = append(whereParts, qb.buildQueryCondition(q))
	return strings.Join(whereParts, " AND ")
}

func (qb *QueryBuilder) buildQueryCondition(q Query) string {
	var parts []string
	for _, g := range q.Groups {
		if len(g.Predicates) == 0 {
			continue
		}
		parts = append(parts, qb.buildGroupCondition(g))
	}
	if len(parts) == 0 {
		return "FALSE"
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return "(" + strings.Join(parts, " OR ") + ")"
}

func (qb *QueryBuilder) buildGroupCondition(g Group) string {
	parts := make([]string, 0, len(g.Predicates))
	for _, p := range g.Predicates {
		parts = append(parts, p.sql(qb))
	}
	return "(" + strings.Join(parts, " AND ") + ")"
}
