// install.go 将服务安装为 systemd unit
package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"petmarket/internal/shared/sysinstall"
)

const serviceName = "petmarket-api-server"

// runInstall 执行 `api-server install`：
// 创建系统用户和目录，把当前二进制注册为 systemd 服务。
func runInstall() {
	if !sysinstall.IsRoot() {
		log.Fatal("install requires root (try sudo)")
	}
	if !sysinstall.HasSystemd() {
		log.Fatal("install requires systemd")
	}

	if err := sysinstall.EnsureSystemUser(); err != nil {
		log.Fatalf("Failed to create service user: %v", err)
	}
	if err := sysinstall.EnsureDirectories(); err != nil {
		log.Fatalf("Failed to create directories: %v", err)
	}

	// .env 可能保存敏感配置，存在时收紧权限
	envFile := filepath.Join(sysinstall.ConfigDir, ".env")
	if _, err := os.Stat(envFile); err == nil {
		sysinstall.SetSecureFilePermissions(envFile)
	} else {
		envFile = ""
	}

	binaryPath := sysinstall.GetExecutablePath()
	if binaryPath == "" {
		log.Fatal("Failed to resolve executable path")
	}

	unit := sysinstall.GenerateServiceFile(binaryPath, serviceName,
		"Pet Market API Server", envFile, "")
	if err := sysinstall.InstallSystemdService(serviceName, unit); err != nil {
		log.Fatalf("Failed to install service: %v", err)
	}

	fmt.Printf("Installed. Put configs under %s and start with: systemctl start %s\n",
		sysinstall.ConfigDir, serviceName)
}
