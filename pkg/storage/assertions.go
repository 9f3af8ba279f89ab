package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/blackcoderx/probe/pkg/collection"
	"gopkg.in/yaml.v3"
)

// AssertionsFileName is the default assertion set inside the base directory.
const AssertionsFileName = "assertions.yaml"

// SaveAssertions writes an assertion set to a YAML file
func SaveAssertions(set AssertionSet, filePath string) error {
	// Ensure directory exists
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	// Ensure .yaml extension
	if !strings.HasSuffix(filePath, ".yaml") && !strings.HasSuffix(filePath, ".yml") {
		filePath = filePath + ".yaml"
	}

	data, err := yaml.Marshal(set)
	if err != nil {
		return fmt.Errorf("failed to marshal assertions: %w", err)
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	return nil
}

// LoadAssertions loads an assertion set from a YAML file. Blocks without
// any non-blank line are an error, since they could never be matched.
func LoadAssertions(filePath string) ([]collection.Block, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read assertions file: %w", err)
	}

	var set AssertionSet
	if err := yaml.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("failed to parse assertions YAML: %w", err)
	}

	if len(set.Blocks) == 0 {
		return nil, fmt.Errorf("assertions file %s defines no blocks", filePath)
	}
	for i, b := range set.Blocks {
		if b.Text() == "" {
			return nil, fmt.Errorf("assertion block %d (%s) is empty", i+1, b.Name)
		}
	}

	return set.Blocks, nil
}

// GetAssertionsPath returns the default assertion set path
func GetAssertionsPath(baseDir string) string {
	return filepath.Join(baseDir, AssertionsFileName)
}

// DefaultAssertions are the checks applied when no assertion set exists yet.
func DefaultAssertions() []collection.Block {
	return []collection.Block{
		{
			Name: "status code",
			Lines: []string{
				`pm.test("Response status code is 200", function () {`,
				`  pm.expect(pm.response.code).to.equal(200);`,
				`});`,
			},
		},
		{
			Name: "response time",
			Lines: []string{
				`pm.test("Response time is within an acceptable range", function () {`,
				`  pm.expect(pm.response.responseTime).to.be.below(500);`,
				`});`,
			},
		},
		{
			Name: "required fields",
			Lines: []string{
				`pm.test("Response has the required fields", function () {`,
				`    const responseData = pm.response.json();`,
				`    `,
				`    pm.expect(responseData).to.be.an('object');`,
				`    pm.expect(responseData).to.include.all.keys('success', 'status_code', 'message', 'data', 'patch_data');`,
				`});`,
			},
		},
		{
			Name: "tokens present",
			Lines: []string{
				`pm.test("Access token and refresh token should not be empty strings", function () {`,
				`  const responseData = pm.response.json();`,
				`  `,
				`  pm.expect(responseData.data.access_token).to.be.a('string').and.to.have.lengthOf.at.least(1, "Access token should not be empty");`,
				`  pm.expect(responseData.data.refresh_token).to.be.a('string').and.to.have.lengthOf.at.least(1, "Refresh token should not be empty");`,
				`});`,
			},
		},
	}
}
