package resolve

import (
	"fmt"
	"strings"

	"github.com/draftforge/template-studio/remap-orchestrator/internal/models"
)

// ProceduralMarker prefixes group names that the upstream editor treats as
// procedurally managed. A leading run of markers is stripped before lookup.
const ProceduralMarker = '!'

// Result is the outcome of resolving a requested container name against a
// design tree. Resolution failures are statuses, not errors: the pipeline
// keeps running and the UI renders the message.
type Result struct {
	Status  models.ResolveStatus
	Matched *models.LayerNode
	Message string
}

// Resolve locates the design group named by requested inside the tree rooted
// at root. Lookup is exact-case first over the full tree, then
// case-insensitive over the full tree; an exact match always wins even when
// a case-insensitive match occurs earlier in traversal order. Matches may be
// nested arbitrarily deep.
func Resolve(requested string, root *models.LayerNode) Result {
	if root == nil {
		return Result{
			Status:  models.ResolveDataLocked,
			Message: "design document is not available yet",
		}
	}

	cleaned := CleanName(requested)
	if cleaned == "" {
		return Result{
			Status:  models.ResolveNoName,
			Message: "no group name was provided",
		}
	}

	if match := findByName(root, cleaned, false); match != nil {
		return classify(match, cleaned, models.ResolveResolved)
	}
	if match := findByName(root, cleaned, true); match != nil {
		return classify(match, cleaned, models.ResolveCaseMismatch)
	}

	return Result{
		Status:  models.ResolveMissingDesignGroup,
		Message: fmt.Sprintf("no group named %q exists in the design document", cleaned),
	}
}

// CleanName strips a leading run of procedural markers and surrounding
// whitespace from a requested group name.
func CleanName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.TrimLeft(name, string(ProceduralMarker))
	return strings.TrimSpace(name)
}

func classify(match *models.LayerNode, cleaned string, found models.ResolveStatus) Result {
	if len(match.Children) == 0 {
		return Result{
			Status:  models.ResolveEmptyGroup,
			Matched: match,
			Message: fmt.Sprintf("group %q exists but contains no layers", match.Name),
		}
	}

	msg := fmt.Sprintf("resolved %q with %d layers", match.Name, len(match.Children))
	if found == models.ResolveCaseMismatch {
		msg = fmt.Sprintf("resolved %q for request %q (case mismatch) with %d layers",
			match.Name, cleaned, len(match.Children))
	}
	return Result{Status: found, Matched: match, Message: msg}
}

// findByName is a pre-order depth-first search over the tree. The traversal
// is iterative with an explicit stack so layer trees of arbitrary depth
// cannot overflow the goroutine stack.
func findByName(root *models.LayerNode, name string, insensitive bool) *models.LayerNode {
	stack := []*models.LayerNode{root}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if node == nil {
			continue
		}

		if insensitive {
			if strings.EqualFold(node.Name, name) {
				return node
			}
		} else if node.Name == name {
			return node
		}

		// Push children in reverse so the leftmost child is visited first.
		for i := len(node.Children) - 1; i >= 0; i-- {
			stack = append(stack, node.Children[i])
		}
	}
	return nil
}
