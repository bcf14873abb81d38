package battle

import (
	"fmt"
	"strings"
)

// RenderScript renders a set of computed patches as an executable SQL
// script without applying anything. Operators who prefer manual
// execution can review and run it themselves; the statements are exactly
// what the repair engine would write.
func RenderScript(patches []*Patch) (string, error) {
	var b strings.Builder

	b.WriteString("-- Family battle repair script\n")
	b.WriteString(fmt.Sprintf("-- %d famil%s to repair\n", len(patches), plural(len(patches), "y", "ies")))
	b.WriteString("-- Review before executing. Repairs are idempotent: re-running\n")
	b.WriteString("-- this script against already-repaired rows changes nothing further.\n")
	b.WriteString("BEGIN;\n\n")

	for _, patch := range patches {
		types := make([]string, 0, len(patch.Issues))
		for _, issue := range patch.Issues {
			types = append(types, string(issue.Type))
		}
		b.WriteString(fmt.Sprintf("-- family %d: %s\n", patch.FamilyID, strings.Join(types, ", ")))

		doc, err := EncodeBattle(patch.Battle)
		if err != nil {
			return "", fmt.Errorf("family %d: %w", patch.FamilyID, err)
		}

		b.WriteString("UPDATE families SET battle = '")
		b.WriteString(strings.ReplaceAll(doc, "'", "''"))
		b.WriteString("'")
		if patch.DeleteLegacy {
			b.WriteString(", legacy_history = NULL")
		}
		b.WriteString(", last_repaired = CURRENT_TIMESTAMP, repaired_by = 'repair-script'")
		b.WriteString(fmt.Sprintf(" WHERE id = %d;\n\n", patch.FamilyID))
	}

	b.WriteString("COMMIT;\n")
	return b.String(), nil
}

func plural(n int, singular, pluralForm string) string {
	if n == 1 {
		return singular
	}
	return pluralForm
}
