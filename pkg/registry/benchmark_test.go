package registry

import (
	"fmt"
	"testing"

	"github.com/gofhir/typegraph/pkg/model"
)

func BenchmarkGetOrCreate(b *testing.B) {
	r := New()
	names := make([]string, 512)
	for i := range names {
		names[i] = fmt.Sprintf("Type%d", i)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r.GetOrCreate(names[i%len(names)])
	}
}

func BenchmarkRegisterMerge(b *testing.B) {
	r := New()
	built := model.NewClass("Patient", model.KindResource)
	for i := 0; i < 30; i++ {
		built.AddProperty(&model.Property{Name: fmt.Sprintf("field%d", i), DeclaredTypeName: "string"})
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r.Register(built)
	}
}

func BenchmarkAll(b *testing.B) {
	r := New()
	for i := 0; i < 200; i++ {
		r.Register(model.NewClass(fmt.Sprintf("Type%d", i), model.KindComplexType))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = r.All()
	}
}
