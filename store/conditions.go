package store

// ParentExistsCondition returns the condition expression for parent validation.
func ParentExistsCondition() string {
	return "attribute_exists(id)"
}

// VersionCondition returns the optimistic lock condition used by updates.
// The item must exist and carry the expected version.
func VersionCondition() string {
	return "attribute_exists(id) AND #version = :expected_version"
}

// mergeExprNames merges multiple expression attribute name maps.
func mergeExprNames(maps ...map[string]string) map[string]string {
	result := make(map[string]string)
	for _, m := range maps {
		for k, v := range m {
			result[k] = v
		}
	}
	return result
}
