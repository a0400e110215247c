// pgguide 在流媒体标题页上叠加 IMDb 家长指引（parents guide）信息。
//
// 用法：
//
//	pgguide serve
//	pgguide resolve <id> <title> [--year YYYY]
//	pgguide overlay <page.html> --url <page-url>
package main

func main() {
	Execute()
}
