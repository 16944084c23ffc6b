package fastembed

// DefaultModel is the sentence-transformer the tutorials used.
const DefaultModel = "sentence-transformers/all-MiniLM-L6-v2"

var modelDimensions = map[string]int{
	"BAAI/bge-small-en-v1.5":                 384,
	"BAAI/bge-small-en":                      384,
	"BAAI/bge-base-en-v1.5":                  768,
	"BAAI/bge-base-en":                       768,
	"BAAI/bge-small-zh-v1.5":                 512,
	"sentence-transformers/all-MiniLM-L6-v2": 384,
}

// ModelDimension returns the vector length of a supported model.
func ModelDimension(model string) (int, bool) {
	d, ok := modelDimensions[model]
	return d, ok
}
