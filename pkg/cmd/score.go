package cmd

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"

	"github.com/yeisme/datanexus/pkg/app"
	"github.com/yeisme/datanexus/pkg/configs"
	"github.com/yeisme/datanexus/pkg/internal/model"
	"github.com/yeisme/datanexus/pkg/internal/scoring"
	"github.com/yeisme/datanexus/pkg/internal/service"
	"github.com/yeisme/datanexus/pkg/internal/storage/s3"
	"github.com/yeisme/datanexus/pkg/log"
)

const localBucket = "local"

var (
	scoreDryRun      bool
	scoreUser        string
	scoreTitle       string
	scoreDescription string
	scoreTags        []string

	scoreCmd = &cobra.Command{
		Use:   "score <file>",
		Short: "run the scoring pipeline against a local file",
		Long: `score 使用已配置的预言机对本地文件执行完整评分流水线并输出结果.
--dry-run 时不连接存储，也不写入提交记录.`,
		Args: cobra.ExactArgs(1),
		RunE: runScore,
	}
)

func runScore(cmd *cobra.Command, args []string) error {
	obj, err := readLocalObject(args[0], configs.GetConfig().S3.MaxObjectBytes)
	if err != nil {
		return err
	}

	meta := scoreMetadata()

	var sub *model.Submission

	if scoreDryRun {
		log.Init()

		cfg := configs.GetConfig()

		_, pipeline, perr := app.NewPipeline(cfg)
		if perr != nil {
			return perr
		}

		sub, err = service.NewIngestService(nil, nil, nil, nil, pipeline, cfg.Events).Evaluate(cmd.Context(), obj, meta)
	} else {
		err = withRuntime(cmd, func(ctx context.Context, rt *app.Runtime) error {
			var perr error
			sub, perr = rt.Ingest().Process(ctx, obj, meta)

			return perr
		})
	}

	if err != nil {
		return err
	}

	b, err := sonic.ConfigStd.MarshalIndent(sub, "", "  ")
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), string(b))

	return nil
}

// readLocalObject 读取本地文件并包装成对象，超过 maxBytes 的部分截断.
func readLocalObject(path string, maxBytes int64) (*s3.Object, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	obj := &s3.Object{
		Bucket:       localBucket,
		Key:          scoreOwner() + "/" + filepath.Base(path),
		Size:         int64(len(data)),
		LastModified: info.ModTime().UTC(),
		Data:         data,
	}

	if maxBytes > 0 && int64(len(data)) > maxBytes {
		obj.Data = data[:maxBytes]
		obj.Truncated = true
	}

	if obj.LastModified.IsZero() {
		obj.LastModified = time.Now().UTC()
	}

	return obj, nil
}

func scoreOwner() string {
	if u := strings.TrimSpace(scoreUser); u != "" {
		return u
	}

	return scoring.DefaultOwnerID
}

// scoreMetadata 按上传端的约定对元数据做百分号编码.
func scoreMetadata() map[string]string {
	meta := map[string]string{scoring.MetaUserID: scoreOwner()}

	if scoreTitle != "" {
		meta[scoring.MetaTitle] = url.PathEscape(scoreTitle)
	}

	if scoreDescription != "" {
		meta[scoring.MetaDescription] = url.PathEscape(scoreDescription)
	}

	if len(scoreTags) > 0 {
		meta[scoring.MetaUserTags] = url.PathEscape(strings.Join(scoreTags, ","))
	}

	return meta
}

func registerScoreCommands() {
	scoreCmd.Flags().BoolVar(&scoreDryRun, "dry-run", false, "score only, do not connect storage or persist")
	scoreCmd.Flags().StringVarP(&scoreUser, "user", "u", "", "contributor id (defaults to the anonymous contributor)")
	scoreCmd.Flags().StringVar(&scoreTitle, "title", "", "contributor supplied title")
	scoreCmd.Flags().StringVar(&scoreDescription, "description", "", "contributor supplied description")
	scoreCmd.Flags().StringSliceVar(&scoreTags, "tags", nil, "contributor supplied tags, comma separated")

	rootCmd.AddCommand(scoreCmd)
}
