// 輸出由 gorm model 推導的 schema，供 atlas 比對內嵌的 migration 是否落後
//
//	atlas migrate diff --env gorm
//
// atlas.hcl 中以 external_schema 執行本程式
//   - program = ["go", "run", "-mod=mod", "./tools/atlas-loader"]
package main

import (
	"fmt"
	"io"
	"os"

	"ariga.io/atlas-provider-gorm/gormschema"

	"gigflow/models"
)

func main() {
	stmts, err := gormschema.New("postgres").Load(models.All()...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load gorm schema: %v\n", err)
		os.Exit(1)
	}
	io.WriteString(os.Stdout, stmts)
}
