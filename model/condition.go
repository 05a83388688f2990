package model

// Operator is one filter operator understood by the backend's filter syntax.
type Operator struct {
	Label   string
	Code    string
	Numeric bool
	Text    bool
}

// The full operator catalog. Order matters: it is the order operators are
// offered to the user.
var Operators = []Operator{
	{Label: "equals", Code: "eq", Numeric: true, Text: true},
	{Label: "greater than", Code: "gt", Numeric: true},
	{Label: "less than", Code: "lt", Numeric: true},
	{Label: "greater or equal", Code: "ge", Numeric: true},
	{Label: "less or equal", Code: "le", Numeric: true},
	{Label: "contains", Code: "ilike", Text: true},
}

// OperatorsFor returns the operators applicable to a field, catalog order
// preserved. Numeric fields get the numeric set, everything else the text set.
func OperatorsFor(isNum bool) []Operator {
	var result []Operator
	for _, op := range Operators {
		if (isNum && op.Numeric) || (!isNum && op.Text) {
			result = append(result, op)
		}
	}
	return result
}

// OperatorByCode looks an operator up by its backend code.
func OperatorByCode(code string) (Operator, bool) {
	for _, op := range Operators {
		if op.Code == code {
			return op, true
		}
	}
	return Operator{}, false
}

// Condition is a single user-built filter criterion over one field. It is
// ephemeral view state: built when the user submits the criteria form,
// handed to the query builder, never cached in the store.
type Condition struct {
	Field string
	Op    Operator
	Value string
	IsNum bool
}

// NewCondition builds a Condition, applying per-operator submission rules:
// contains wraps the entered value in wildcard markers, every other operator
// passes the raw value through.
func NewCondition(field string, op Operator, value string, isNum bool) Condition {
	if op.Code == "ilike" {
		value = "*" + value + "*"
	}
	return Condition{Field: field, Op: op, Value: value, IsNum: isNum}
}
