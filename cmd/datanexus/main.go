// Package main 启动应用程序
package main

import (
	"os"

	"github.com/yeisme/datanexus/pkg/cmd"
)

//	@title			DataNexus API
//	@version		1.0
//	@description	DataNexus 数据市场后端：贡献者上传数据，系统评估质量分，机构按分类购买并按质量分向贡献者分账。

//	@license.name	MIT
//	@license.url	https://opensource.org/license/mit/

//	@contact.name	yeisme
//	@contact.email	yefun2004@gmail.com.

//	@BasePath	/

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
