package words

// defaultWords 内置题库（カタカナ語）
var defaultWords = []string{
	"スマートフォン", "コンビニエンスストア", "リモートワーク", "インターネット",
	"コンピューター", "アプリケーション", "セキュリティ", "パスワード",
	"プログラミング", "アルゴリズム", "データベース", "サーバー",
	"クラウド", "ストレージ", "ダウンロード", "アップロード",
	"ブラウザ", "タブレット", "キーボード", "マウス",
	"モニター", "プリンター", "スキャナー", "ルーター",
	"カメラ", "ビデオ", "オーディオ", "スピーカー",
	"イヤホン", "マイク", "リモコン", "エアコン",
	"テレビ", "ラジオ", "ステレオ", "アンプ",
	"バッテリー", "チャージャー", "ケーブル", "アダプター",
	"メモリーカード", "ハードディスク", "フラッシュメモリ", "バックアップ",
	"ソフトウェア", "ハードウェア", "ファームウェア", "ドライバー",
	"インストール", "アンインストール", "アップデート", "バージョン",
	"ライセンス", "サブスクリプション", "フリーソフト", "シェアウェア",
	"ウイルス", "マルウェア", "ファイアウォール", "暗号化",
	"ログイン", "ログアウト", "アカウント", "プロフィール",
	"タイムライン", "フィード", "ストリーミング",
	"シェア", "コメント", "フォロー",
	"メッセージ", "チャット", "グループ", "スタンプ",
	"エモジ", "ハッシュタグ", "メンション", "リツイート",
	"スクリーンショット", "スクロール", "タップ", "スワイプ",
	"ズーム", "パン", "ピンチ", "ドラッグ",
	"コピー", "ペースト", "カット",
	"セーブ", "ロード", "エクスポート", "インポート",
	"サムネイル", "プレビュー", "レンダリング", "エンコード",
	"デコード", "アーカイブ",
}
