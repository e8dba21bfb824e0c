package tree_test

import (
	"fmt"

	"github.com/strataviz/strataflow/pkg/tree"
)

func ExampleTree_AddStage() {
	tr := tree.New(tree.DefaultCatalog())

	// Split the root by feature-splitting probability, then split the
	// low branch by mean semantic distance.
	_ = tr.AddStage(tree.RootID, tree.StageFeatureSplitting, nil)
	_ = tr.AddStage("root_feature_splitting_low", tree.StageSemanticDistance, nil)

	for _, leaf := range tr.Leaves() {
		fmt.Println(leaf.ID)
	}
	// Output:
	// root_feature_splitting_high
	// root_feature_splitting_low_semdist_mean_low
	// root_feature_splitting_low_semdist_mean_high
}

func ExampleTree_AvailableStageTypes() {
	tr := tree.New(tree.DefaultCatalog())
	_ = tr.AddStage(tree.RootID, tree.StageFeatureSplitting, nil)

	// A pass already applied on the path to a leaf is not offered again.
	available, _ := tr.AvailableStageTypes("root_feature_splitting_low")
	for _, st := range available {
		fmt.Println(st.ID)
	}
	// Output:
	// semantic_distance
	// score_agreement
}
